// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/kellystat/internal/recorder"
	"github.com/Thermoquad/kellystat/pkg/kelly"
)

var replayJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay <file.cbor>",
	Short: "Print a session recorded with monitor --record",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print one JSON object per record")
	replayCmd.Flags().Float64("tire-diameter", kelly.DefaultTireDiameter, "Tire diameter in inches for the MPH estimate")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := recorder.NewReader(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return replay(r, os.Stdout, replayJSON, appConfig.Monitor.TireDiameter)
}

// replay writes every record from r to w
func replay(r *recorder.Reader, w io.Writer, asJSON bool, tireDiameter float64) error {
	h := r.Header()

	var enc *json.Encoder
	if asJSON {
		enc = json.NewEncoder(w)
	} else {
		fmt.Fprintf(w, "Recording started %s\n", h.Started.Format("2006-01-02 15:04:05"))
		if h.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", h.Source)
		}
		fmt.Fprintln(w)
	}

	count := 0
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count+1, err)
		}
		count++

		if enc != nil {
			if err := enc.Encode(rec); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(w, formatRecord(rec, tireDiameter))
	}

	if enc == nil {
		fmt.Fprintf(w, "\n%d records\n", count)
	}
	return nil
}

// formatRecord renders one record as a single line
func formatRecord(rec recorder.Record, tireDiameter float64) string {
	ts := timestamp(rec.Time)
	switch {
	case rec.Kind == recorder.KindSnapshot && rec.Snapshot != nil:
		return fmt.Sprintf("[%s] %s", ts, monitorLine(*rec.Snapshot, tireDiameter))
	case rec.Kind == recorder.KindExchange && rec.Exchange != nil:
		x := rec.Exchange
		if x.Error != "" {
			return fmt.Sprintf("[%s] %s failed after %d attempt(s): %s", ts, x.Command, x.Attempts, x.Error)
		}
		return fmt.Sprintf("[%s] %s ok after %d attempt(s) data=[% X]", ts, x.Command, x.Attempts, x.Payload)
	default:
		return fmt.Sprintf("[%s] %s record", ts, rec.Kind)
	}
}
