// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command line interface of the garage-door
// identity provider.
package app

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ctron/garage-door/internal/config"
	"github.com/ctron/garage-door/internal/issuer"
	"github.com/ctron/garage-door/internal/logger"
	"github.com/ctron/garage-door/internal/server"
)

const envPrefix = "GARAGE_DOOR"

var rootCmd = &cobra.Command{
	Use:               "garage-door",
	DisableAutoGenTag: true,
	Short:             "An OpenID Connect playground server",
	Long: `garage-door is a small, multi-tenant OpenID Connect issuer intended for
testing and development. Issuers and their clients are declared in a
configuration file; tokens are minted for a fixed placeholder subject
without any real authentication.

Do not use this to protect anything.`,
	RunE: runServe,
}

// NewRootCmd creates the root command. Serving is the root action; there
// are no subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd.Flags().IntP("port", "p", 8080, "Port to bind to")
	rootCmd.Flags().StringP("bind", "b", "::1", "Address to bind to")
	rootCmd.Flags().StringP("base", "B", "", "Base path prefix for all endpoints")
	rootCmd.Flags().StringP("config", "c", "garage-door.yaml", "Configuration file")
	rootCmd.Flags().Bool("debug", false, "Enable debug logging")

	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		logger.Errorf("Failed to bind flags: %v", err)
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	return rootCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger.Initialize(viper.GetBool("debug"))

	logger.Info("Starting up...")

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	basePath := viper.GetString("base")

	registry, err := issuer.NewRegistry(cfg.Issuers, basePath)
	if err != nil {
		return err
	}

	srv := server.New(registry, server.Options{
		Bind:     viper.GetString("bind"),
		Port:     viper.GetInt("port"),
		BasePath: basePath,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
