package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/agentloop/internal/app"
	"github.com/hupe1980/agentloop/internal/config"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	configPath string
	addr       string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the HTTP service exposing POST /chat/stream, GET /chat/ws,
GET /threads/{id}, GET /info, GET /healthz and GET /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "config file (json, yaml or toml)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func loadConfig(cmd *cobra.Command, flags *serveFlags) (*config.Config, error) {
	loader := config.NewLoader(flags.configPath)

	v := loader.Viper()
	if err := v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return nil, err
	}

	return loader.Load()
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *serveFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	if cfg.Project.Version == "" {
		cfg.Project.Version = Version
	}

	a, err := app.New(ctx, cfg, func(o *app.Options) { o.LogOutput = cmd.ErrOrStderr() })
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Server.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "agentloop listening on %s\n", a.Server.Addr())

	<-ctx.Done()

	return a.Server.Shutdown(context.Background())
}
