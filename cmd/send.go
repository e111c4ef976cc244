// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var sendCmd = &cobra.Command{
	Use:   "send <command> [data bytes...]",
	Short: "Send one raw command and decode the response",
	Long: `Send a single command frame and display both frames of the exchange with
the decoded response.

The command is a protocol name (MONITOR_ONE, get_version, ...) or a number
(0x3A). Data bytes are hex, with or without a 0x prefix.

Example:
  kellystat send GET_VERSION
  kellystat send 0x3B
  kellystat send READ_CONFIG`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := kelly.ParseCommand(args[0])
	if err != nil {
		return err
	}
	data, err := parseDataBytes(args[1:])
	if err != nil {
		return err
	}
	request, err := kelly.NewFrame(command, data)
	if err != nil {
		return err
	}

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Printf("Connection: %s\n\n", sess.info)
	fmt.Print("TX " + kelly.FormatFrame(request))

	result := sess.controller.Exchange(command, data)
	if !result.Success() {
		return fmt.Errorf("%s failed after %d attempt(s): %w", command, result.Attempts, result.Err)
	}

	response, err := kelly.NewFrame(result.Command, result.Payload)
	if err != nil {
		return err
	}
	fmt.Print("RX " + kelly.FormatFrame(response))
	fmt.Printf("   attempts=%d duration=%s\n\n", result.Attempts, result.Duration.Round(100*time.Microsecond))
	fmt.Println(kelly.FormatResponse(result.Command, result.Payload))
	return nil
}

// parseDataBytes parses hex byte arguments
func parseDataBytes(args []string) ([]byte, error) {
	if len(args) > kelly.MaxDataLength {
		return nil, fmt.Errorf("%w: %d data bytes (max %d)", kelly.ErrInvalidDataLength, len(args), kelly.MaxDataLength)
	}
	data := make([]byte, 0, len(args))
	for _, arg := range args {
		s := strings.TrimPrefix(strings.ToLower(arg), "0x")
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid data byte %q", arg)
		}
		data = append(data, byte(v))
	}
	return data, nil
}
