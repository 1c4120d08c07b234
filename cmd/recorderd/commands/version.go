package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags
var Version = "dev"

// VersionCmd prints the recorderd version
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show recorderd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("recorderd %s\n", Version)
	},
}
