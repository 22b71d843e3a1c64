package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/anki"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/utils"
)

var (
	jsonOutputFlag bool
	quietFlag      bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [package.apkg]",
	Short: "Validate an Anki package and summarise its contents",
	Long: `Reads an Anki .apkg file, runs the full validation and conversion pass without
writing anything, and prints the resulting status, content counts and issues.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts := converterOptions()

		read := anki.ReadPackage(ctx, args[0], opts...)
		summary := runSummary{Status: read.Status, Issues: read.Issues}
		if read.HasData() {
			defer read.Data.Close()
			summary.MediaFiles = len(read.Data.MediaFiles())
			conv := read.Data.ToUniversal(ctx, opts...)
			summary.merge(conv.Status, conv.Issues)
			if conv.HasData() {
				counts := conv.Data.Counts()
				summary.Counts = &counts
			}
		}

		if jsonOutputFlag {
			output, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format inspection output: %w", err)
			}
			fmt.Println(string(output))
		} else {
			printSummary(os.Stdout, summary, quietFlag)
		}
		return summary.err()
	},
}

var toUniversalCmd = &cobra.Command{
	Use:   "to-universal [input.apkg] [output]",
	Short: "Convert an Anki package to the universal format",
	Long: `Converts an Anki .apkg file to a universal package. The format follows the
output file extension (.json, .yaml, .yml, .bson) unless --format is given.
Without an output path the package is written to stdout.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res := anki.ConvertPackageFile(cmd.Context(), args[0], converterOptions()...)
		summary := runSummary{Status: res.Status, Issues: res.Issues}
		if res.HasData() {
			counts := res.Data.Counts()
			summary.Counts = &counts

			if len(args) == 1 {
				data, err := srs.Marshal(res.Data, cfg.Format)
				if err != nil {
					return err
				}
				os.Stdout.Write(data)
				printSummary(os.Stderr, summary, quietFlag)
				return summary.err()
			}

			outPath, err := utils.ResolveAndEnsureOutputPath(args[1])
			if err != nil {
				return err
			}
			if err := srs.WriteFile(res.Data, outPath, outputFormat(cmd, outPath)); err != nil {
				return err
			}
			summary.Output = outPath
		}
		printSummary(os.Stdout, summary, quietFlag)
		return summary.err()
	},
}

var toAnkiCmd = &cobra.Command{
	Use:   "to-anki [input] [output.apkg]",
	Short: "Convert a universal package to an Anki package",
	Long: `Converts a universal package (json, yaml or bson) to an Anki .apkg file.
The input format follows the file extension unless --format is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := srs.ReadFile(args[0], outputFormat(cmd, args[0]))
		if err != nil {
			return err
		}

		res := anki.FromUniversal(cmd.Context(), u, converterOptions()...)
		summary := runSummary{Status: res.Status, Issues: res.Issues}
		if res.HasData() {
			defer res.Data.Close()
			outPath, err := utils.ResolveAndEnsureOutputPath(args[1])
			if err != nil {
				return err
			}
			if err := res.Data.Save(outPath); err != nil {
				return fmt.Errorf("failed to write package: %w", err)
			}
			counts := u.Counts()
			summary.Counts = &counts
			summary.Output = outPath
		}
		printSummary(os.Stdout, summary, quietFlag)
		return summary.err()
	},
}

func initConvertCmds() {
	inspectCmd.Flags().BoolVar(&jsonOutputFlag, "json", false, "Print the inspection result as JSON")
	for _, c := range []*cobra.Command{inspectCmd, toUniversalCmd, toAnkiCmd} {
		c.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Only print errors and critical issues")
	}
}

// outputFormat returns the configured format when --format was given or
// the path has no extension, and otherwise lets the extension decide.
func outputFormat(cmd *cobra.Command, path string) srs.Format {
	if cmd.Flags().Changed("format") || !hasExtension(path) {
		return cfg.Format
	}
	return ""
}
