// Command proctorctl is the operator CLI for the proctoring service:
// schema migrations, tokens, time extensions and violation reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/logger"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	validator.Setup()

	root := newRootCmd(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("proctorctl command failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "proctorctl",
		Short:         "Operate the EduManage proctoring service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newMigrateCmd(cfg))
	root.AddCommand(newTokenCmd(cfg))
	root.AddCommand(newExtensionsCmd(cfg))
	root.AddCommand(newViolationsCmd(cfg))

	return root
}
