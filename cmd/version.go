package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

var versionShort bool

// newVersionCmd prints the build version together with the Go runtime it was
// built with. --short prints only the version string for scripts.
func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mcpgate",
		Long:  `Prints the mcpgate build version, the Go release and the target platform.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), GetVersion(), versionShort)
		},
	}
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version string")
	return versionCmd
}

func printVersion(out io.Writer, version string, short bool) {
	if version == "" {
		version = "unknown"
	}
	if short {
		fmt.Fprintln(out, version)
		return
	}
	fmt.Fprintf(out, "mcpgate version %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
