// SPDX-FileCopyrightText: Copyright 2025 The garage-door Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the garage-door identity provider.
package main

import (
	"os"

	"github.com/ctron/garage-door/cmd/garage-door/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
