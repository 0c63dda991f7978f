package main

import (
	"fmt"

	"github.com/spf13/cobra"

	labeler "github.com/menta2k/bbox-labeler"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the labeler version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "labeler %s\n", labeler.Version)
	},
}
