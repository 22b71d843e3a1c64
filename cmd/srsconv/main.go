package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	srsconverter "github.com/eikowagenknecht/srs-converter-sub002/pkg"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/config"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/logging"
)

var (
	configPath string

	cfg    *config.Config
	logger *zap.SugaredLogger
	// flushLogs is replaced once the logger is built.
	flushLogs = func() {}
)

var rootCmd = &cobra.Command{
	Use:     "srsconv",
	Short:   "Convert flashcard collections between Anki packages and a universal format.",
	Long:    ``,
	Version: fmt.Sprintf("v%s", srsconverter.Version),

	// main prints the error; a failed conversion is not a usage mistake.
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded

		l, flush, err := logging.New(logging.Options{Verbose: cfg.Verbose, LogFile: cfg.LogFile})
		if err != nil {
			return err
		}
		logger = l
		flushLogs = flush
		logger.Debugw("Configuration loaded", "errorHandling", cfg.ErrorHandling, "format", cfg.Format, "compact", cfg.Compact)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for srsconv.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(srsconv completion bash)

  Bash (persist):
    $ srsconv completion bash > /etc/bash_completion.d/srsconv

  Zsh:
    $ srsconv completion zsh > "${fpath[1]}/_srsconv"

  Fish:
    $ srsconv completion fish | source
    $ srsconv completion fish > ~/.config/fish/completions/srsconv.fish

  PowerShell:
    PS> srsconv completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	PersistentPreRunE:     func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version number of srsconv",
	Long:              `All software has versions. This is srsconv's`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(srsconverter.Version)
	},
}

func initCmd() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to a YAML config file (default: system-specific srsconv/config.yaml if present)")
	pf.String("error-handling", "", "How row-level errors affect the result: best-effort or strict (default: best-effort)")
	pf.String("format", "", "Universal package format: json, yaml or bson (default: json)")
	pf.Bool("compact", false, "Drop decks and note types that no note uses")
	pf.String("temp-dir", "", "Directory for temporary package workspaces (default: system temp dir)")
	pf.String("log-file", "", "Also write JSON logs to this file, rotated by size")
	pf.BoolP("verbose", "v", false, "Enable debug logging on stderr")

	initConvertCmds()
	rootCmd.AddCommand(completionCmd, versionCmd, inspectCmd, toUniversalCmd, toAnkiCmd, mcpCmd)
}

func main() {
	initCmd()

	err := rootCmd.Execute()
	flushLogs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
