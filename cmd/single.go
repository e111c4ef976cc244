// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var singleJSON bool

var singleCmd = &cobra.Command{
	Use:   "single",
	Short: "Read the monitor packets once and print the snapshot",
	RunE:  runSingle,
}

func init() {
	rootCmd.AddCommand(singleCmd)
	singleCmd.Flags().BoolVar(&singleJSON, "json", false, "Print the snapshot as JSON")
	singleCmd.Flags().Float64("tire-diameter", kelly.DefaultTireDiameter, "Tire diameter in inches for the MPH estimate")
}

func runSingle(cmd *cobra.Command, args []string) error {
	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	snap, err := sess.controller.ReadMonitor()
	if err != nil {
		return fmt.Errorf("monitor read failed: %w", err)
	}
	anomalies := kelly.ValidateSnapshot(snap)

	if singleJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Snapshot  kelly.MonitorSnapshot `json:"snapshot"`
			Anomalies []string              `json:"anomalies"`
		}{snap, anomalyMessages(anomalies)})
	}

	fmt.Print(kelly.FormatSnapshot(snap, appConfig.Monitor.TireDiameter))
	for i, a := range anomalies {
		fmt.Printf("  Issue %d: %s\n", i+1, a.Message)
	}
	return nil
}

func anomalyMessages(errs []kelly.ValidationError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message)
	}
	return out
}
