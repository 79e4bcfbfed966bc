package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg, ctx.log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx.log.Info().
		Str("cache", a.cache.Backend()).
		Dur("refresh_interval", cfg.ProcessingInterval).
		Str("port", cfg.ServerPort).
		Msg("starting pinyinfeed")
	if err := a.agg.Run(cmd.Context()); err != nil {
		return err
	}
	ctx.log.Info().Msg("pinyinfeed stopped gracefully")
	return nil
}
