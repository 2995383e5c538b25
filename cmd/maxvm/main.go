// maxvm drives the AMD64 disassembler and the adaptive compilation broker
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/beehive-lab/Maxine-VM-sub091/log"
	"github.com/beehive-lab/Maxine-VM-sub091/vmerrors"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if code := vmerrors.GetErrorCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "error %s: %v\n", code, err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		debug    string
	)
	rootCmd := &cobra.Command{
		Use:           "maxvm",
		Short:         "AMD64 template disassembler and adaptive compilation scheduler",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitLogger(logLevel)
			log.EnableModules(debug)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&debug, "debug", "", "comma separated modules to log at debug level (disasm,asm,compile,codecache,jit or all)")

	rootCmd.AddCommand(
		newDisasmCmd(),
		newTemplatesCmd(),
		newScheduleCmd(),
		newShellCmd(),
	)
	return rootCmd
}
