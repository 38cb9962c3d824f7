// Command schedbench runs scheduler workloads on independent kernel
// instances and reports checksums and wake latency statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ember/internal/buildinfo"
)

var rootCmd = &cobra.Command{
	Use:           "schedbench",
	Short:         "Scheduler workload runner",
	Long:          "Runs the message ring workload and a wake latency sampler on independent kernels.",
	Version:       buildinfo.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "schedbench:", err)
		os.Exit(1)
	}
}
