package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quidome/media-tidy/pkg/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage media-tidy configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/" + config.FileName + " unless --config is given.",
		Example: `  media-tidy config                      # show all config
  media-tidy config set exclude Thumbs.db
  media-tidy config get hash.chunk_size`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, opts)
		},
	}

	cmd.AddCommand(newConfigSetCmd(opts))
	cmd.AddCommand(newConfigGetCmd(opts))

	return cmd
}

func newConfigSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, opts, args[0], args[1])
		},
	}
}

func newConfigGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, opts, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command, opts *options) error {
	if used := opts.v.ConfigFileUsed(); used != "" {
		cmd.Printf("# Config file: %s\n", used)
	} else {
		cmd.Println("# No config file found, showing defaults")
	}

	out, err := yaml.Marshal(opts.cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	cmd.Print(string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, opts *options, key, value string) error {
	if !knownKey(opts, key) {
		return fmt.Errorf("unknown key %q", key)
	}

	switch value {
	case "true", "yes", "on":
		opts.v.Set(key, true)
	case "false", "no", "off":
		opts.v.Set(key, false)
	default:
		opts.v.Set(key, value)
	}

	var cfg config.Config
	if err := opts.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cfgFile := opts.v.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, config.FileName)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(cfgFile, out, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	cmd.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, opts *options, key string) error {
	if !knownKey(opts, key) {
		return fmt.Errorf("key %q is not set", key)
	}
	cmd.Println(opts.v.Get(key))
	return nil
}

func knownKey(opts *options, key string) bool {
	return slices.Contains(opts.v.AllKeys(), strings.ToLower(key))
}
