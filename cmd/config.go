package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/padi-analytics/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set PADI Analytics configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		if cfg.UsesFiles() {
			fmt.Fprintf(out, "student_file: %s\n", cfg.StudentFile)
			fmt.Fprintf(out, "teacher_file: %s\n", cfg.TeacherFile)
		} else {
			fmt.Fprintf(out, "student_sheet_id: %s\n", cfg.StudentSheetID)
			fmt.Fprintf(out, "teacher_sheet_id: %s\n", cfg.TeacherSheetID)
			fmt.Fprintf(out, "student_range: %s\n", cfg.StudentRange)
			fmt.Fprintf(out, "teacher_range: %s\n", cfg.TeacherRange)
			if cfg.CredentialsFile != "" {
				fmt.Fprintf(out, "credentials_file: %s\n", cfg.CredentialsFile)
			}
			if cfg.CredentialsBase64 != "" {
				fmt.Fprintln(out, "credentials_base64: (set)")
			}
		}
		fmt.Fprintf(out, "provider: %s\n", cfg.Provider)
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "model: %s\n", cfg.Model)
		fmt.Fprintf(out, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(out, "prompt_limit: %d\n", cfg.PromptLimit)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "listen_addr: %s\n", cfg.ListenAddr)
		fmt.Fprintf(out, "timezone: %s\n", cfg.Timezone)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "users: %s\n", strings.Join(append([]string{cfgpkg.AdminUser}, cfg.Teachers()...), ", "))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setKey(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	var err error
	switch key {
	case "student_sheet_id":
		c.StudentSheetID = val
	case "teacher_sheet_id":
		c.TeacherSheetID = val
	case "student_range":
		c.StudentRange = val
	case "teacher_range":
		c.TeacherRange = val
	case "credentials_file":
		c.CredentialsFile = val
	case "student_file":
		c.StudentFile = val
	case "teacher_file":
		c.TeacherFile = val
	case "provider":
		c.Provider = strings.ToLower(val)
	case "api_key":
		c.APIKey = val
	case "model":
		c.Model = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		c.Temperature, err = strconv.ParseFloat(val, 64)
		if err != nil {
			err = fmt.Errorf("invalid float for temperature: %w", err)
		}
	case "prompt_limit":
		c.PromptLimit, err = atoi()
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "listen_addr":
		c.ListenAddr = val
	case "timezone":
		c.Timezone = val
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
