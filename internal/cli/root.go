// Package cli is the vitrine command line: the storefront shell server plus commands that
// drive the same session and cart from a terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lachlan2k/vitrine/internal/app"
	"github.com/lachlan2k/vitrine/internal/config"
)

type contextKey struct{}

var confPath string

var rootCmd = &cobra.Command{
	Use:           "vitrine",
	Short:         "Storefront client: session, cart and the local view shell",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&confPath, "config", "config.toml", "Path to config file")

	rootCmd.AddCommand(serveCmd, loginCmd, logoutCmd, whoamiCmd, cartCmd, checkoutCmd)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// loadApp builds the app from --config, unless one was already put on the context.
// The returned func tears down whatever loadApp built.
func loadApp(ctx context.Context) (*app.App, func(), error) {
	if a, ok := ctx.Value(contextKey{}).(*app.App); ok {
		return a, func() {}, nil
	}

	conf, err := config.LoadFromTomlFileAndValidate(confPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := app.NewLogger(conf.LogLevel)
	a, err := app.New(ctx, conf, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}

	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warnf("Failed to close storage: %v", err)
		}
	}, nil
}

// withApp runs fn with a fully restored session and closes everything afterwards.
func withApp(fn func(ctx context.Context, a *app.App, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, done, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer done()

		a.Init(ctx)
		return fn(ctx, a, cmd.OutOrStdout())
	}
}
