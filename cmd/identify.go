// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify [status|enter|exit]",
	Short: "Control the motor identification routine",
	Long: `Query or control the controller's motor identification (auto-learn)
routine.

  status  report whether identification is running (default)
  enter   start identification; the motor may turn
  exit    stop identification`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"status", "enter", "exit"},
	RunE:      runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	action := "status"
	if len(args) == 1 {
		action = args[0]
	}

	sess, err := openSession(nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	switch action {
	case "enter":
		if err := sess.controller.EnterIdentify(); err != nil {
			return fmt.Errorf("enter identify failed: %w", err)
		}
		fmt.Println("Identification started")
	case "exit":
		if err := sess.controller.QuitIdentify(); err != nil {
			return fmt.Errorf("quit identify failed: %w", err)
		}
		fmt.Println("Identification stopped")
	default:
		status, err := sess.controller.IdentifyStatus()
		if err != nil {
			return fmt.Errorf("identify status failed: %w", err)
		}
		fmt.Printf("Identification: %s\n", status)
	}
	return nil
}
