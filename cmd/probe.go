// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var probeWait int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by waiting for a GET_VERSION response",
	Long: `Send GET_VERSION repeatedly until the controller answers with a valid
frame or the wait time runs out.

Exit codes:
  0 - Controller answered before the wait expired
  1 - No valid response within the wait time
  2 - Connection error

Useful for checking wiring, baud rate and WebSocket bridges in scripts.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeWait, "wait", 10, "Seconds to keep trying")
}

func runProbe(cmd *cobra.Command, args []string) error {
	sess, err := openSession(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Kellystat - Probe\n")
	fmt.Printf("Connection: %s\n", sess.info)
	fmt.Printf("Wait: %d seconds\n", probeWait)
	fmt.Printf("Waiting for GET_VERSION response...\n\n")

	deadline := time.Now().Add(time.Duration(probeWait) * time.Second)
	var lastErr error
	for {
		v, err := sess.controller.Version()
		if err == nil {
			st := sess.stats.Snapshot()
			fmt.Printf("SUCCESS: Controller answered\n")
			fmt.Printf("  Version: %s\n", v)
			fmt.Printf("  Attempts: %d (%d checksum errors, %d timeouts)\n", st.Attempts, st.ChecksumErrors, st.Timeouts)
			sess.Close()
			os.Exit(0)
		}
		lastErr = err

		if connectionLost(err) {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			sess.Close()
			os.Exit(2)
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintf(os.Stderr, "TIMEOUT: No valid response within %d seconds (last error: %v)\n", probeWait, lastErr)
	sess.Close()
	os.Exit(1)
	return nil
}
