// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var (
	configRaw     bool
	configYAML    bool
	configJSON    bool
	configConfirm bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and display the controller configuration block",
	Long: `Read the configuration block with READ_CONFIG and print every parameter
it covers.

Parameters whose offset lies past the end of the returned block are not
shown.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set name=value...",
	Short: "Change configuration parameters",
	Long: `Read the configuration block, apply the given changes and write the
result back with WRITE_CONFIG.

Without --confirm the changes are only shown. Writing has not been verified
against real hardware, and only the first 13 bytes of the block can be
written, so most parameters are refused.

Values are integers (decimal or 0x hex); time parameters also accept
seconds with an "s" suffix, e.g. accel_time=1.5s.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfigSet,
}

var configParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "List every known configuration parameter",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(formatParamTable())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configParamsCmd)

	configCmd.Flags().BoolVar(&configRaw, "raw", false, "Print the raw block as hex")
	configCmd.Flags().BoolVar(&configYAML, "yaml", false, "Print parameters as YAML")
	configCmd.Flags().BoolVar(&configJSON, "json", false, "Print parameters as JSON")
	configCmd.MarkFlagsMutuallyExclusive("raw", "yaml", "json")

	configSetCmd.Flags().BoolVar(&configConfirm, "confirm", false, "Actually write the changes")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	block, err := sess.controller.ReadConfig()
	if err != nil {
		return fmt.Errorf("config read failed: %w", err)
	}

	switch {
	case configRaw:
		fmt.Print(hexDump(block.Raw()))
		return nil

	case configYAML:
		out, err := yaml.Marshal(block.Map())
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil

	case configJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(block.Map())
	}

	fmt.Print(kelly.FormatConfig(block))
	for _, w := range kelly.ValidateConfig(block) {
		fmt.Printf("  \033[1;33mWARNING:\033[0m %s\n", w)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	assignments, err := parseAssignments(args)
	if err != nil {
		return err
	}

	sess, err := openSession([]kelly.ControllerOption{kelly.WithConfigWrite(configConfirm)})
	if err != nil {
		return err
	}
	defer sess.Close()

	block, err := sess.controller.ReadConfig()
	if err != nil {
		return fmt.Errorf("config read failed: %w", err)
	}
	original := kelly.DecodeConfig(block.Raw())

	for _, a := range assignments {
		if err := block.Set(a.name, a.value); err != nil {
			return err
		}
	}

	fmt.Println("Changes:")
	for _, name := range block.Changed() {
		after, _ := block.Get(name)
		if before, ok := original.Get(name); ok {
			fmt.Printf("  %s: %s -> %s\n", name, before, after)
		} else {
			fmt.Printf("  %s: (not in block) -> %s\n", name, after)
		}
	}

	if !configConfirm {
		_, warnings, err := kelly.EncodeConfig(block)
		printRangeWarnings(warnings)
		if err != nil {
			return err
		}
		fmt.Println("Dry run: pass --confirm to write these changes")
		return nil
	}

	warnings, err := sess.controller.ApplyConfig(block)
	printRangeWarnings(warnings)
	if err != nil {
		return fmt.Errorf("config write failed: %w", err)
	}
	fmt.Println("Configuration written")
	return nil
}

func printRangeWarnings(warnings []kelly.RangeWarning) {
	for _, w := range warnings {
		fmt.Printf("  \033[1;33mWARNING:\033[0m %s\n", w)
	}
}

type assignment struct {
	name  string
	value string
}

// parseAssignments splits name=value arguments
func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected name=value)", arg)
		}
		if _, known := kelly.LookupField(name); !known {
			return nil, fmt.Errorf("%w: %s", kelly.ErrUnknownParameter, name)
		}
		out = append(out, assignment{name: name, value: value})
	}
	return out, nil
}

// hexDump renders raw with its offset, 16 bytes per line
func hexDump(raw []byte) string {
	var b strings.Builder
	for off := 0; off < len(raw); off += 16 {
		end := off + 16
		if end > len(raw) {
			end = len(raw)
		}
		fmt.Fprintf(&b, "%04X: % X\n", off, raw[off:end])
	}
	if len(raw) == 0 {
		b.WriteString("(empty)\n")
	}
	return b.String()
}

func formatParamTable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s %-6s %-8s %-12s %s\n", "NAME", "OFFSET", "KIND", "RANGE", "DESCRIPTION")
	for _, f := range kelly.ConfigFields {
		rng := "-"
		if f.Numeric() {
			rng = fmt.Sprintf("%d-%d", f.Min, f.Max)
			if f.Unit != "" {
				rng += " " + f.Unit
			}
		}
		desc := f.Description
		if f.ReadOnly {
			desc += " [ro]"
		}
		fmt.Fprintf(&b, "%-22s 0x%03X  %-8s %-12s %s\n", f.Name, f.Offset, f.Kind, rng, desc)
	}
	return b.String()
}
