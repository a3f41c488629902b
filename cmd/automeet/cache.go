package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/automeet/bootstrap"
)

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the transcription cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached transcription",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			cfg.Server.Enabled = false
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if app.Cache == nil {
				return fmt.Errorf("cache is disabled")
			}
			return app.RunTask(cmd.Context(), func(context.Context) error {
				app.Cache.Clear()
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", app.Cfg.Cache.Dir)
				return nil
			})
		},
	})
	return cmd
}
