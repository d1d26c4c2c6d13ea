package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/padi-analytics/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.ListenAddr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, c, false)
		if err != nil {
			return err
		}
		if rt, err := buildRuntime(c); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: assistant disabled: %v\n", err)
		} else {
			a.assistant = a.newAssistant(rt)
		}
		if c.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(server.Options{
			Sessions:  a.sessions,
			Resolver:  a.resolver,
			Loader:    a.loader,
			Assistant: a.assistant,
			Location:  a.location,
			Logger:    logger,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on %s\n", c.ListenAddr)
		return srv.Run(ctx, c.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
