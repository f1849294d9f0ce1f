package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quidome/media-tidy/pkg/createdat"
	"github.com/quidome/media-tidy/pkg/dupes"
	"github.com/quidome/media-tidy/pkg/filetype"
	"github.com/quidome/media-tidy/pkg/isobmff"
	"github.com/quidome/media-tidy/pkg/reconcile"
	"github.com/quidome/media-tidy/pkg/scan"
	"github.com/quidome/media-tidy/pkg/tidy"
)

const timeLayout = "2006-01-02 15:04:05"

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [directory]",
		Short: "List the files a directory command would touch",
		Long:  "List the files directly inside a directory, skipping subdirectories and excluded names. With --verbose, sizes are shown too.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := scan.ListRecords(args[0], opts.cfg.ScanOptions(opts.logger))
			if err != nil {
				return err
			}
			var total int64
			for _, r := range records {
				total += r.Size
				if opts.verbose {
					cmd.Printf("%s\t%s\n", r.Path, humanize.IBytes(uint64(r.Size)))
					continue
				}
				cmd.Println(r.Path)
			}
			if opts.verbose {
				cmd.PrintErrf("found %d files, %s\n", len(records), humanize.IBytes(uint64(total)))
			}
			return nil
		},
	}
}

func newTimestampsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "timestamps [file]...",
		Short: "Print the capture time stored in media files",
		Long:  "Print the creation and modification time of mov/mp4 movie headers, or the EXIF/XMP capture time of images.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extractor := createdat.New(createdat.Options{Logger: opts.logger})
			for _, path := range args {
				if filetype.Of(path).IsContainer() {
					ts, err := isobmff.ReadFile(path)
					if err != nil {
						cmd.Printf("%s\t%s\n", path, color.RedString(err.Error()))
						continue
					}
					cmd.Printf("%s\tcreated %s\tmodified %s\n", path, formatTime(ts.Creation), formatTime(ts.Modification))
					continue
				}

				res, err := extractor.Determine(path)
				if err != nil {
					cmd.Printf("%s\t%s\n", path, color.RedString(err.Error()))
					continue
				}
				cmd.Printf("%s\tcreated %s\t(%s)\n", path, formatTime(res.CreatedAt), res.Source)
			}
			return nil
		},
	}
}

func newDupesCmd(opts *options) *cobra.Command {
	var keepOldest bool

	dupesCmd := &cobra.Command{
		Use:   "dupes [directory]",
		Short: "Report files with identical content",
		Long:  "Group the files in a directory by size and report the ones whose content is byte-identical.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.tidier(args[0]).FindDuplicates()
			if err != nil {
				return err
			}
			printDuplicates(cmd, res)
			if keepOldest {
				extractor := createdat.New(createdat.Options{Logger: opts.logger})
				printDecisions(cmd, reconcile.Decide(res.Duplicates, func(path string) time.Time {
					r, err := extractor.Determine(path)
					if err != nil {
						return time.Time{}
					}
					return r.CreatedAt
				}))
			}
			return nil
		},
	}

	dupesCmd.Flags().BoolVar(&keepOldest, "keep-oldest", false, "suggest which copy of each duplicate set to keep, by capture time")

	return dupesCmd
}

func newFixTypesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-types [directory]",
		Short: "Give files the extension matching their content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := opts.tidier(args[0]).CorrectFileTypes()
			if err != nil {
				return err
			}
			printOutcomes(cmd, outcomes, opts.verbose)
			return nil
		},
	}
}

func newFixDatesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-dates [directory]",
		Short: "Set file times to the capture time in their metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := opts.tidier(args[0]).UpdateDatesFromMetadata()
			if err != nil {
				return err
			}
			printOutcomes(cmd, outcomes, opts.verbose)
			return nil
		},
	}
}

func newRenameCmd(opts *options) *cobra.Command {
	var noRandom bool

	renameCmd := &cobra.Command{
		Use:   "rename [directory]",
		Short: "Rename files after their modification time",
		Long:  "Rename files to YYYY-MM-DDTHH-MM-SS followed by a random R suffix, so files taken in the same second do not clash.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := opts.tidier(args[0]).ConvertNamesToDates(!noRandom)
			if err != nil {
				return err
			}
			printOutcomes(cmd, outcomes, opts.verbose)
			return nil
		},
	}

	renameCmd.Flags().BoolVar(&noRandom, "no-random", false, "leave out the random suffix and number clashing names _1, _2, ...")

	return renameCmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(timeLayout), humanize.Time(t))
}

func printDuplicates(cmd *cobra.Command, res dupes.Result) {
	sizes := make([]int64, 0, len(res.Groups))
	for size := range res.Groups {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	for _, size := range sizes {
		cmd.Printf("%s\n", color.CyanString("%s (%d bytes)", humanize.IBytes(uint64(size)), size))
		for _, name := range res.Groups[size] {
			cmd.Printf("  %s\n", name)
		}
	}

	if len(res.Duplicates) == 0 {
		cmd.Println(color.GreenString("no duplicates found"))
	}
	for _, d := range res.Duplicates {
		cmd.Printf("%s %s is a duplicate of %s\n", color.YellowString("duplicate"), d.Path, d.DuplicateOf)
	}
	for _, s := range res.Skipped {
		cmd.PrintErrf("%s %s (%s): %v\n", color.RedString("skipped"), s.Path, s.Stage, s.Err)
	}
}

func printDecisions(cmd *cobra.Command, decisions []reconcile.Decision) {
	for _, d := range decisions {
		if d.Action == reconcile.ActionKeep {
			cmd.Printf("%s %s (%s)\n", color.GreenString("keep"), d.Path, humanize.IBytes(uint64(d.Size)))
			continue
		}
		cmd.Printf("%s %s (same as %s)\n", color.YellowString("redundant"), d.Path, d.DuplicateOf)
	}
}

func printOutcomes(cmd *cobra.Command, outcomes []tidy.Outcome, verbose bool) {
	counts := make(map[tidy.Action]int)
	for _, o := range outcomes {
		counts[o.Action]++
		switch o.Action {
		case tidy.ActionRenamed:
			cmd.Printf("%s %s -> %s\n", color.GreenString("renamed"), o.Path, o.Destination)
		case tidy.ActionTimeUpdated:
			cmd.Printf("%s %s -> %s\n", color.GreenString("updated"), o.Path, o.Time.Local().Format(timeLayout))
		case tidy.ActionFailed:
			cmd.Printf("%s %s: %v\n", color.RedString("failed"), o.Path, o.Error)
		case tidy.ActionSkipped:
			cmd.Printf("%s %s: %v\n", color.YellowString("skipped"), o.Path, o.Error)
		default:
			if verbose {
				cmd.Printf("unchanged %s\n", o.Path)
			}
		}
	}
	cmd.Printf("%d changed, %d unchanged, %d skipped, %d failed\n",
		counts[tidy.ActionRenamed]+counts[tidy.ActionTimeUpdated],
		counts[tidy.ActionUnchanged], counts[tidy.ActionSkipped], counts[tidy.ActionFailed])
}
