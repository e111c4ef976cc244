// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Read the raw phase current ADC values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(nil)
		if err != nil {
			return err
		}
		defer sess.Close()

		adc, err := sess.controller.PhaseCurrentADC()
		if err != nil {
			return fmt.Errorf("phase current read failed: %w", err)
		}
		fmt.Printf("Phase current ADC: A=%d B=%d C=%d\n", adc.A, adc.B, adc.C)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(phaseCmd)
}
