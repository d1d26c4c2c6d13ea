package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/ai"
	"github.com/KaramelBytes/padi-analytics/internal/assistant"
	cfgpkg "github.com/KaramelBytes/padi-analytics/internal/config"
	"github.com/KaramelBytes/padi-analytics/internal/sheets"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// app holds the collaborators shared by serve, report and ask.
type app struct {
	cfg       *cfgpkg.Global
	roster    survey.Roster
	resolver  *access.Resolver
	sessions  *access.SessionStore
	loader    *sheets.Loader
	location  *time.Location
	assistant *assistant.Assistant
}

// newApp wires the source, access and (when withAssistant) the LLM runtime
// from c.
func newApp(ctx context.Context, c *cfgpkg.Global, withAssistant bool) (*app, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	src, err := buildSource(ctx, c)
	if err != nil {
		return nil, err
	}
	roster := survey.NewRoster(c.Teachers()...)
	a := &app{
		cfg:      c,
		roster:   roster,
		resolver: access.NewResolver(roster),
		sessions: access.NewSessionStore(access.Credentials(c.Users)),
		location: loc,
		loader: &sheets.Loader{
			Source:     src,
			Normalizer: survey.NewNormalizer(roster, loc),
			Logger:     logger,
		},
	}
	if withAssistant {
		rt, err := buildRuntime(c)
		if err != nil {
			return nil, err
		}
		a.assistant = a.newAssistant(rt)
	}
	return a, nil
}

func (a *app) newAssistant(rt ai.Runtime) *assistant.Assistant {
	return assistant.New(rt, a.resolver, assistant.Config{
		Provider:    a.cfg.Provider,
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		PromptLimit: a.cfg.PromptLimit,
	}, logger)
}

// buildSource picks local exports when either file is configured, Google
// Sheets otherwise.
func buildSource(ctx context.Context, c *cfgpkg.Global) (sheets.Source, error) {
	if c.UsesFiles() {
		if c.StudentFile == "" || c.TeacherFile == "" {
			return nil, errors.New("both --student-file and --teacher-file are required when reading exports")
		}
		return &sheets.FileSource{StudentPath: c.StudentFile, TeacherPath: c.TeacherFile}, nil
	}
	if c.StudentSheetID == "" || c.TeacherSheetID == "" {
		return nil, errors.New("student_sheet_id and teacher_sheet_id are required (or pass --student-file/--teacher-file)")
	}
	return sheets.NewGoogleSource(ctx, sheets.GoogleConfig{
		StudentSheetID:    c.StudentSheetID,
		TeacherSheetID:    c.TeacherSheetID,
		StudentRange:      c.StudentRange,
		TeacherRange:      c.TeacherRange,
		CredentialsBase64: c.CredentialsBase64,
		CredentialsFile:   c.CredentialsFile,
	}, logger)
}

// buildRuntime creates the configured LLM provider.
func buildRuntime(c *cfgpkg.Global) (ai.Runtime, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("api_key is not set for provider %s (set ANTHROPIC_API_KEY or PADI_API_KEY)", c.Provider)
	}
	rt, ok := ai.GetRuntime(c.Provider, ai.RuntimeConfig{
		HTTPTimeout: c.HTTPTimeout(),
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		APIKey:      c.APIKey,
	})
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", c.Provider, strings.Join(ai.Providers(), ", "))
	}
	return rt, nil
}

// login opens a session for a one-shot command. An empty password falls back
// to PADI_PASSWORD.
func (a *app) login(user, password string) (*access.Session, error) {
	if password == "" {
		password = os.Getenv("PADI_PASSWORD")
	}
	s, err := a.sessions.Login(user, password)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", user, err)
	}
	return s, nil
}

// parseDay parses a YYYY-MM-DD flag in loc; empty means unbounded.
func parseDay(v string, loc *time.Location) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}
