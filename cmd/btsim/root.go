package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zeusync/btcore/internal/config"
	"github.com/zeusync/btcore/internal/core/bt/template"
	"github.com/zeusync/btcore/internal/injector"
)

var rootCmd = &cobra.Command{
	Use:           "btsim",
	Short:         "btsim runs behavior-tree agents",
	Long:          `btsim loads behavior-tree templates, keeps them in a template store and ticks many agents built from them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load (default .env)")
}

func loadApp(cmd *cobra.Command) (*injector.App, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, nil, err
	}
	return injector.InitializeApp(cfg)
}

// resolveTemplate reads ref as a file when one exists and otherwise loads it
// by name from the store.
func resolveTemplate(ctx context.Context, store template.Store, ref string) (*template.Template, error) {
	if _, err := os.Stat(ref); err == nil {
		return template.LoadFile(ref)
	}
	return store.Load(ctx, ref)
}
