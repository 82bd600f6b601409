package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/btcore/internal/core/bt/template"
	"github.com/zeusync/btcore/internal/injector"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check template files",
	Long:  `Loads each template file and builds it against the registered node kinds, reporting bad references, cycles and parameter errors.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := injector.ProvideRegistry()
		failed := 0
		for _, path := range args {
			tmpl, err := template.LoadFile(path)
			if err == nil {
				_, err = tmpl.Build(reg)
			}
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d nodes)\n", path, tmpl.Name, len(tmpl.Nodes))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d templates invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
