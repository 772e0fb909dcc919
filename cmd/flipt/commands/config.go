package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/TimurManjosov/goflipt/internal/cli"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage flipt CLI profiles stored in ~/.flipt/config.yaml.`,
	}

	configCmd.AddCommand(
		newConfigInitCmd(),
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigUseCmd(),
	)

	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long: `Create a default configuration file at ~/.flipt/config.yaml

Example:
  flipt config init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.InitConfig(); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			configPath, _ := cli.GetConfigPath()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
			fmt.Fprintln(out, "\nPlease edit the file to set your tokens and URLs.")
			fmt.Fprintln(out, "Example:")
			fmt.Fprintln(out, "  flipt config set prod.token my-client-token")

			return nil
		},
	}
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		Long: `Display the current configuration. Tokens are masked.

Example:
  flipt config list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Default Profile: %s\n\n", cfg.DefaultProfile)
			fmt.Fprintln(out, "Profiles:")

			names := make([]string, 0, len(cfg.Profiles))
			for name := range cfg.Profiles {
				names = append(names, name)
			}
			slices.Sort(names)

			for _, name := range names {
				p := cfg.Profiles[name]
				fmt.Fprintf(out, "  %s:\n", name)
				fmt.Fprintf(out, "    url: %s\n", p.URL)
				if p.Namespace != "" {
					fmt.Fprintf(out, "    namespace: %s\n", p.Namespace)
				}
				if p.Token != "" {
					fmt.Fprintf(out, "    token: %s\n", mask(p.Token))
				}
				if p.JWT != "" {
					fmt.Fprintf(out, "    jwt: %s\n", mask(p.JWT))
				}
			}

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <profile.key>",
		Short: "Get a configuration value",
		Long: `Get a specific configuration value.

Examples:
  flipt config get local.url
  flipt config get prod.token`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			name, key, err := splitProfileKey(args[0])
			if err != nil {
				return err
			}

			profile, ok := cfg.Profiles[name]
			if !ok {
				return fmt.Errorf("profile '%s' not found", name)
			}

			value, err := profile.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <profile.key> <value>",
		Short: "Set a configuration value",
		Long: `Set a specific configuration value. Missing profiles are created.

Examples:
  flipt config set local.url http://localhost:8080
  flipt config set prod.token my-client-token
  flipt config set prod.namespace payments`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			name, key, err := splitProfileKey(args[0])
			if err != nil {
				return err
			}

			profile := cfg.Profiles[name]
			if err := profile.Set(key, args[1]); err != nil {
				return err
			}
			cfg.Profiles[name] = profile

			if err := cli.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Successfully set %s.%s\n", name, key)

			return nil
		},
	}
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Set the default profile",
		Long: `Make a profile the default for subsequent commands.

Example:
  flipt config use prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if _, ok := cfg.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile '%s' not found", args[0])
			}

			cfg.DefaultProfile = args[0]
			if err := cli.SaveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Default profile set to %s\n", args[0])

			return nil
		},
	}
}

func splitProfileKey(s string) (string, string, error) {
	name, key, ok := strings.Cut(s, ".")
	if !ok || name == "" || key == "" {
		return "", "", fmt.Errorf("invalid key format, expected 'profile.key' (e.g., 'local.url')")
	}
	return name, key, nil
}

func mask(secret string) string {
	if len(secret) > 4 {
		return secret[:4] + "***"
	}
	return "***"
}
