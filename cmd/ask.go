package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/padi-analytics/internal/ai"
	"github.com/KaramelBytes/padi-analytics/internal/assistant"
	"github.com/KaramelBytes/padi-analytics/internal/utils"
)

var (
	askUser     string
	askPassword string
	askFAQ      string
	askDryRun   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant one question about the survey data",
	Long: `Builds a digest of the data visible to the identity, sends it with the
question to the configured LLM once, and prints the answer. Use --faq for one
of the starter questions and --dry-run to print the prompt without calling
the model.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, err := askQuestion(args)
		if err != nil {
			return err
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, c, !askDryRun)
		if err != nil {
			return err
		}
		sess, err := a.login(askUser, askPassword)
		if err != nil {
			return err
		}
		ds, err := a.loader.Load(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if askDryRun {
			asst := a.newAssistant(nil)
			prompt, err := asst.Prompt(sess.Identity, ds, question)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "--- Prompt Preview ---")
			fmt.Fprintln(out, prompt)
			fmt.Fprintln(out, "--- Token Estimate ---")
			digest, err := asst.Digest(sess.Identity, ds)
			if err != nil {
				return err
			}
			breakdown := utils.TokenBreakdown(map[string]string{"data": digest.Text(), "question": question, "total": prompt})
			keys := make([]string, 0, len(breakdown))
			for k := range breakdown {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %d\n", k, breakdown[k])
			}
			return nil
		}

		answer, err := a.assistant.Ask(ctx, sess, ds, question)
		if err != nil {
			var authErr *ai.AuthError
			if errors.As(err, &authErr) {
				fmt.Fprintln(os.Stderr, "⚠ Warning: check api_key for provider", c.Provider)
			}
			return err
		}
		fmt.Fprintf(out, "%s %s\n\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Q:"), question, answer)
		return nil
	},
}

func askQuestion(args []string) (string, error) {
	if askFAQ != "" {
		if len(args) > 0 {
			return "", errors.New("pass either --faq or a question, not both")
		}
		f, ok := assistant.LookupFAQ(askFAQ)
		if !ok {
			keys := make([]string, 0, len(assistant.FAQs))
			for _, f := range assistant.FAQs {
				keys = append(keys, f.Key)
			}
			return "", fmt.Errorf("unknown faq %q (use one of: %s)", askFAQ, strings.Join(keys, ", "))
		}
		return f.Question, nil
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", assistant.ErrEmptyQuestion
	}
	return args[0], nil
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askUser, "user", "u", "", "identity to log in as (admin or teacher last name)")
	askCmd.Flags().StringVar(&askPassword, "password", "", "password (defaults to $PADI_PASSWORD)")
	askCmd.Flags().StringVar(&askFAQ, "faq", "", "ask a starter question: patterns, choice, confusing or engagement")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "print the prompt and token estimate without calling the model")
	_ = askCmd.MarkFlagRequired("user")
}
