package version

import (
	"github.com/spf13/cobra"
)

// AttachCobraVersion enables the --version flag on root.
// A subcommand would clash with the positional launch command.
func AttachCobraVersion(root *cobra.Command) {
	root.Version = Short()
	root.SetVersionTemplate(Full() + "\n")
}
