package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/btcore/internal/injector"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the available node kinds",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range injector.ProvideRegistry().Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
