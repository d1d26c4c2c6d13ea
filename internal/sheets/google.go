package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// GoogleConfig locates both spreadsheets and the service-account credentials.
type GoogleConfig struct {
	StudentSheetID string
	TeacherSheetID string
	StudentRange   string
	TeacherRange   string
	// CredentialsBase64 holds a base64-encoded service-account JSON key.
	// It wins over CredentialsFile when both are set.
	CredentialsBase64 string
	CredentialsFile   string
}

// GoogleSource reads rows through the Sheets API with read-only scope.
type GoogleSource struct {
	svc    *gsheets.Service
	cfg    GoogleConfig
	logger *slog.Logger
}

// NewGoogleSource builds the Sheets client from the configured credentials.
func NewGoogleSource(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleSource, error) {
	if cfg.StudentSheetID == "" || cfg.TeacherSheetID == "" {
		return nil, errors.New("both student and teacher sheet ids are required")
	}
	if cfg.StudentRange == "" {
		cfg.StudentRange = DefaultStudentRange
	}
	if cfg.TeacherRange == "" {
		cfg.TeacherRange = DefaultTeacherRange
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	switch {
	case cfg.CredentialsBase64 != "":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.CredentialsBase64))
		if err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", cfg.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("no Google credentials configured (set credentials_base64 or credentials_file)")
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return &GoogleSource{svc: svc, cfg: cfg, logger: logger}, nil
}

func (g *GoogleSource) StudentRows(ctx context.Context) ([][]string, error) {
	return g.fetch(ctx, Students, g.cfg.StudentSheetID, g.cfg.StudentRange)
}

func (g *GoogleSource) TeacherRows(ctx context.Context) ([][]string, error) {
	return g.fetch(ctx, Teachers, g.cfg.TeacherSheetID, g.cfg.TeacherRange)
}

func (g *GoogleSource) fetch(ctx context.Context, table Table, id, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, &FetchError{Table: table, Err: err}
	}
	rows := valuesToRows(resp.Values)
	g.logger.Debug("fetched sheet rows", "table", table, "range", rng, "rows", len(rows))
	return rows, nil
}

// valuesToRows stringifies the API's cell values. Formatted values arrive as
// strings already; anything else is printed.
func valuesToRows(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, vr := range values {
		row := make([]string, len(vr))
		for i, v := range vr {
			switch x := v.(type) {
			case string:
				row[i] = x
			case nil:
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		out = append(out, row)
	}
	return out
}
