// Package assistant answers free-text questions about the survey data with a
// single LLM call per question, keeping the exchange in the session history.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/access"
	"github.com/KaramelBytes/padi-analytics/internal/ai"
	"github.com/KaramelBytes/padi-analytics/internal/analysis"
	"github.com/KaramelBytes/padi-analytics/internal/observability"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
	"github.com/KaramelBytes/padi-analytics/internal/utils"
)

// ErrEmptyQuestion is returned for blank questions; nothing is recorded.
var ErrEmptyQuestion = errors.New("question is empty")

// AskError is returned when the model call fails. The question stays in the
// session history; no answer is appended.
type AskError struct {
	Question string
	Err      error
}

func (e *AskError) Error() string { return fmt.Sprintf("assistant: %v", e.Err) }

func (e *AskError) Unwrap() error { return e.Err }

// Config selects the model and bounds the prompt.
type Config struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	// PromptLimit caps the estimated prompt size in tokens; 0 disables it.
	PromptLimit int
}

// Assistant builds prompts from a dataset digest and sends them to a runtime.
type Assistant struct {
	rt       ai.Runtime
	resolver *access.Resolver
	cfg      Config
	logger   *slog.Logger
}

// New returns an assistant. A nil logger uses slog.Default.
func New(rt ai.Runtime, resolver *access.Resolver, cfg Config, logger *slog.Logger) *Assistant {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Provider == "" {
		cfg.Provider = ai.DefaultProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{rt: rt, resolver: resolver, cfg: cfg, logger: logger}
}

// Digest summarizes what identity may see: the admin gets every teacher plus
// recent reflections, everyone else only their own students.
func (a *Assistant) Digest(identity string, ds *survey.Dataset) (*analysis.Digest, error) {
	scope, visible, err := a.resolver.Resolve(identity, "", ds)
	if err != nil {
		return nil, err
	}
	if scope.IsAdmin() {
		return analysis.Summarize(ds, true), nil
	}
	return analysis.Summarize(visible, false), nil
}

// Prompt renders the full prompt for question without calling the model.
func (a *Assistant) Prompt(identity string, ds *survey.Dataset, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	d, err := a.Digest(identity, ds)
	if err != nil {
		return "", err
	}
	return fitPrompt(d, question, a.cfg.PromptLimit), nil
}

// Ask records question in the session, asks the model once and records the
// answer. On failure it returns *AskError and the history keeps the question.
func (a *Assistant) Ask(ctx context.Context, s *access.Session, ds *survey.Dataset, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	s.Append(access.RoleUser, question)

	prompt, err := a.Prompt(s.Identity, ds, question)
	if err != nil {
		return "", &AskError{Question: question, Err: err}
	}
	start := time.Now()
	resp, err := a.rt.Generate(ctx, ai.GenerateRequest{
		Model:       a.cfg.Model,
		Messages:    []ai.Message{{Role: access.RoleUser, Content: prompt}},
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	elapsed := time.Since(start)
	if err == nil && strings.TrimSpace(resp.Text()) == "" {
		err = errors.New("model returned an empty answer")
	}
	if err != nil {
		observability.RecordAsk(a.cfg.Provider, ai.Kind(err), elapsed.Seconds(), 0, 0)
		a.logger.Warn("assistant call failed", "identity", s.Identity, "provider", a.cfg.Provider, "kind", ai.Kind(err), "err", err)
		return "", &AskError{Question: question, Err: err}
	}
	observability.RecordAsk(a.cfg.Provider, "success", elapsed.Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	a.logger.Debug("assistant answered", "identity", s.Identity, "duration", elapsed, "prompt_tokens", resp.Usage.PromptTokens)

	answer := strings.TrimSpace(resp.Text())
	s.Append(access.RoleAssistant, answer)
	return answer, nil
}

// fitPrompt drops the oldest sampled comments and reflections until the
// prompt fits limit, then truncates as a last resort.
func fitPrompt(d *analysis.Digest, question string, limit int) string {
	prompt := analysis.BuildPrompt(d, question)
	if limit <= 0 {
		return prompt
	}
	trimmed := *d
	for utils.CountTokens(prompt) > limit {
		switch {
		case len(trimmed.Reflections) > 0:
			trimmed.Reflections = trimmed.Reflections[:len(trimmed.Reflections)-1]
		case len(trimmed.Comments) > 0:
			trimmed.Comments = trimmed.Comments[:len(trimmed.Comments)-1]
		default:
			return utils.TruncateToTokenLimit(prompt, limit)
		}
		prompt = analysis.BuildPrompt(&trimmed, question)
	}
	return prompt
}
