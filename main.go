// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Kellystat - Kelly Motor Controller Diagnostic Tool
//
// A CLI tool for reading live data, version and configuration from Kelly
// KLS motor controllers over their serial diagnostic protocol.

package main

import (
	"os"

	"github.com/Thermoquad/kellystat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
