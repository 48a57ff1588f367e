package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the most recent gesture events from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.New(cfg.JournalPath())
		if err != nil {
			return err
		}
		defer st.Close()
		return printHistory(st, historyLimit, cmd.OutOrStdout())
	},
}

func init() {
	d := config.Default()
	historyCmd.Flags().String("data-dir", d.DataDir, "data directory")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of events to list")
	rootCmd.AddCommand(historyCmd)
}

func printHistory(st *store.Store, limit int, out io.Writer) error {
	events, err := st.Events().Recent(limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tLABEL\tHAND\tID")
	fmt.Fprintln(w, "----\t-----\t----\t--")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ev.Time.Local().Format("2006-01-02 15:04:05.000"), ev.Label, ev.Hand, ev.ID)
	}
	return w.Flush()
}
