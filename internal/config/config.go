package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/padi-analytics/internal/utils"
)

// AdminUser is the identity allowed to see every teacher.
const AdminUser = "admin"

// DefaultUsers mirrors the school's roster. Secrets are overridden per user
// with ADMIN_PASSWORD or PASSWORD_<NAME>.
var DefaultUsers = map[string]string{
	AdminUser:   "admin123",
	"ancheta":   "teacher123",
	"haskell":   "teacher123",
	"walker":    "teacher123",
	"thielk":    "teacher123",
	"kagawa":    "teacher123",
	"hashimoto": "teacher123",
	"jerome":    "teacher123",
	"ramos":     "teacher123",
}

// Global configuration structure.
type Global struct {
	// Row sources
	StudentSheetID    string `mapstructure:"student_sheet_id" yaml:"student_sheet_id"`
	TeacherSheetID    string `mapstructure:"teacher_sheet_id" yaml:"teacher_sheet_id"`
	StudentRange      string `mapstructure:"student_range" yaml:"student_range" validate:"required"`
	TeacherRange      string `mapstructure:"teacher_range" yaml:"teacher_range" validate:"required"`
	CredentialsFile   string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`
	CredentialsBase64 string `mapstructure:"credentials_base64" yaml:"-"`
	StudentFile       string `mapstructure:"student_file" yaml:"student_file,omitempty"`
	TeacherFile       string `mapstructure:"teacher_file" yaml:"teacher_file,omitempty"`

	// Assistant
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"oneof=anthropic openrouter"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=1"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`
	PromptLimit int     `mapstructure:"prompt_limit" yaml:"prompt_limit" validate:"min=0"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"min=1"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" validate:"min=1"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" validate:"min=0"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" validate:"min=0"`

	// Server
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	Timezone   string `mapstructure:"timezone" yaml:"timezone" validate:"required,timezone"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat  string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`

	// Users maps identity to secret (plain or bcrypt hash).
	Users map[string]string `mapstructure:"users" yaml:"users,omitempty"`

	// fileUsers is the users block as read from disk, before defaults and
	// env overrides; Save writes it back unchanged.
	fileUsers map[string]string
}

var validate = validator.New()

// Validate checks field constraints and that at least one source is usable.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", strings.ToLower(fe.Field()), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Users[AdminUser]; !ok {
		return errors.New("invalid config: users must include admin")
	}
	return nil
}

// UsesFiles reports whether local exports replace the Google Sheets source.
func (c *Global) UsesFiles() bool { return c.StudentFile != "" || c.TeacherFile != "" }

// Location returns the time zone form timestamps are interpreted in.
func (c *Global) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Teachers returns every configured identity except the admin, sorted.
func (c *Global) Teachers() []string {
	out := make([]string, 0, len(c.Users))
	for id := range c.Users {
		if id != AdminUser {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// HTTPTimeout returns the configured timeout as a duration.
func (c *Global) HTTPTimeout() time.Duration { return time.Duration(c.HTTPTimeoutSec) * time.Second }

// DefaultDir returns ~/.padi.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".padi"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.padi/config.yaml. The directory is created when missing.
// Base64 credentials, default users and env password overrides are never
// written.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	out := *c
	out.Users = c.fileUsers
	b, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Callers apply flag overrides.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("PADI")
	v.AutomaticEnv()
	// Names used by existing deployments.
	_ = v.BindEnv("api_key", "PADI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("credentials_base64", "PADI_CREDENTIALS_BASE64", "GOOGLE_CREDENTIALS_BASE64")
	_ = v.BindEnv("student_sheet_id", "PADI_STUDENT_SHEET_ID", "STUDENT_SHEET_ID")
	_ = v.BindEnv("teacher_sheet_id", "PADI_TEACHER_SHEET_ID", "TEACHER_SHEET_ID")

	v.SetDefault("student_range", "Form Responses 1!A2:M")
	v.SetDefault("teacher_range", "Form Responses 1!A2:K")
	v.SetDefault("provider", "anthropic")
	v.SetDefault("model", "claude-3-5-haiku-20241022")
	v.SetDefault("max_tokens", 300)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("prompt_limit", 6000)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 1)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && (cfgFile == "" || !os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.fileUsers = c.Users
	c.Users = mergeUsers(c.Users)
	return &c, nil
}

// mergeUsers lowercases identities, fills in the default roster when none is
// configured and applies ADMIN_PASSWORD / PASSWORD_<NAME> overrides.
func mergeUsers(in map[string]string) map[string]string {
	out := make(map[string]string, len(DefaultUsers))
	if len(in) == 0 {
		in = DefaultUsers
	}
	for id, secret := range in {
		out[strings.ToLower(strings.TrimSpace(id))] = secret
	}
	for id := range out {
		key := "PASSWORD_" + strings.ToUpper(id)
		if id == AdminUser {
			key = "ADMIN_PASSWORD"
		}
		if v, ok := os.LookupEnv(key); ok {
			out[id] = v
		}
	}
	return out
}
