package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/app"
	"github.com/ecoloop/ecoloop/internal/screens"
)

// runApp builds the environment and launches the TUI.
func runApp(cmd *cobra.Command) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sessCfg, err := e.sessionConfig()
	if err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	skip, _ := cmd.Flags().GetBool("skip-welcome")

	e.log.Info("starting TUI", "api_url", e.client.BaseURL(), "logged_in", e.provider.LoggedIn())
	return app.Run(app.Options{
		Deps: screens.Deps{
			Account:        e.provider,
			Backend:        e.client,
			Events:         e.store.EventRepo(),
			Session:        sessCfg,
			Autoplay:       e.cfg.Autoplay,
			RequestTimeout: e.cfg.RequestTimeout,
			Log:            e.log,
		},
		SkipWelcome: skip,
	})
}
