package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"placekit/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to --config",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Default().Save(a.configPath); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "wrote %s\n", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after environment overrides",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(redacted(*a.cfg)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func redacted(cfg config.Config) config.Config {
	for _, field := range []*string{
		&cfg.Blob.S3.SecretAccessKey, &cfg.Blob.S3.SessionToken,
		&cfg.Remote.Blob.S3.SecretAccessKey, &cfg.Remote.Blob.S3.SessionToken,
	} {
		if *field != "" {
			*field = "REDACTED"
		}
	}
	return cfg
}
