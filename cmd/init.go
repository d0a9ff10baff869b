package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repoharness/internal/config"
	"repoharness/internal/ui"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create the harness configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() && !initForce {
			return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", config.GetConfigFile())
		}

		wizard := ui.NewConfigWizard()
		cfg, err := wizard.Run()
		if err != nil {
			return err
		}

		// Fill what the wizard does not ask for
		defaults := config.Default()
		cfg.Install = defaults.Install
		cfg.Log = defaults.Log

		if err := config.Save(cfg); err != nil {
			return err
		}
		ui.ShowSuccess("Configuration written to " + config.GetConfigFile())
		ui.ShowInfo("Secrets are encrypted at rest; set REPOHARNESS_ENCRYPTION_KEY to pin the key")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}
