package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/wave/internal/capture"
	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/log"
)

var recordOpts struct {
	out    string
	frames int
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record camera observations to a replay file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		src, err := openCamera(cfg)
		if err != nil {
			return err
		}
		defer src.Close()

		out := os.Stdout
		if recordOpts.out != "-" {
			f, err := os.Create(recordOpts.out)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return record(cmd.Context(), src, out, recordOpts.frames)
	},
}

func init() {
	config.RegisterFlags(recordCmd.Flags())
	recordCmd.Flags().StringVarP(&recordOpts.out, "out", "o", "-", `replay file to write ("-" for stdout)`)
	recordCmd.Flags().IntVarP(&recordOpts.frames, "frames", "n", 0, "stop after this many observations (0 records until interrupted)")
	rootCmd.AddCommand(recordCmd)
}

// record copies observations from src to w as replay lines. Frames without
// hands are kept so replays preserve timing.
func record(ctx context.Context, src capture.Source, w io.Writer, limit int) error {
	writer := capture.NewReplayWriter(w)
	defer writer.Flush()

	written := 0
	for limit <= 0 || written < limit {
		obs, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return writer.Flush()
		case capture.IsTerminal(err):
			return err
		default:
			log.Warn(log.Fields{"error": err}, "skipping frame")
			continue
		}

		if err := writer.Write(obs); err != nil {
			return fmt.Errorf("write replay: %w", err)
		}
		written++
	}

	log.Info(log.Fields{"observations": written}, "recording finished")
	return writer.Flush()
}
