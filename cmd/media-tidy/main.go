package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/quidome/media-tidy/pkg/config"
	"github.com/quidome/media-tidy/pkg/fileops"
	"github.com/quidome/media-tidy/pkg/tidy"
)

const version = "0.2.0"

type options struct {
	cfgFile string
	verbose bool
	dryRun  bool

	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{v: viper.New(), logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:     "media-tidy",
		Short:   "A CLI tool to tidy up media directories",
		Long:    "Media Tidy fixes file extensions, syncs file times with embedded capture dates, renames files after their date and reports duplicate files.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("Media Tidy CLI")
			cmd.Printf("Version: %s\n", version)
			if opts.verbose {
				cmd.Println("Verbose mode: enabled")
			}
			if opts.cfg.DryRun {
				cmd.Println("Dry run mode: enabled")
			}
			cmd.Println("")
			cmd.Println("Use --help to see available commands and options")
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./"+config.FileName+" or $HOME/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "perform a dry run without making changes")
	_ = opts.v.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newTimestampsCmd(opts))
	rootCmd.AddCommand(newDupesCmd(opts))
	rootCmd.AddCommand(newFixTypesCmd(opts))
	rootCmd.AddCommand(newFixDatesCmd(opts))
	rootCmd.AddCommand(newRenameCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger(o.verbose)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

func (o *options) tidier(dir string) *tidy.Tidier {
	ops := fileops.New(nil, fileops.Options{DryRun: o.cfg.DryRun, Logger: o.logger})
	return tidy.New(dir, ops, tidy.Options{
		Scan:       o.cfg.ScanOptions(o.logger),
		Duplicates: o.cfg.DuplicateOptions(o.logger),
		Logger:     o.logger,
	})
}
