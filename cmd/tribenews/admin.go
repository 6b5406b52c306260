package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/storage"
)

// migrateCmd creates the "migrate" subcommand.
func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openStore(cmd.Context())
			if err != nil {
				return err
			}
			m, ok := store.(storage.Migrator)
			if !ok {
				fmt.Printf("%s: nothing to migrate\n", store.Name())
				return nil
			}
			version, err := m.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s schema at %s\n", store.Name(), version)
			return nil
		},
	}
}

// policyCmd creates the "policy" subcommand.
func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the active keyword policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			defer e.close()

			c, err := e.classifier()
			if err != nil {
				return err
			}
			p := c.Policy()
			source := e.cfg.Classifier.PolicyFile
			if source == "" {
				source = "embedded"
			}
			fmt.Fprintf(os.Stderr, "# policy %s version %d revision %s (%s)\n", p.Name, p.Version, p.Revision, source)

			data, err := p.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tribenews %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
// API keys are masked.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			for i := range cfg.Server.APIKeys {
				cfg.Server.APIKeys[i].Key = mask(cfg.Server.APIKeys[i].Key)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			if err == nil {
				if verr := config.Validate(cfg); verr != nil {
					fmt.Fprintf(os.Stderr, "\ninvalid config: %v\n", verr)
				}
			}
			return err
		},
	}
}

func mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}
