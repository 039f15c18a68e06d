package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the dirdiff build and the digests it supports",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, Version)
				return
			}

			fmt.Fprintf(w, "dirdiff version %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			fmt.Fprintf(w, "built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "hash algorithms: %s\n", strings.Join(hash.Supported(), " "))
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print the version number only")
	return cmd
}
