package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/wave/internal/config"
	"github.com/ayusman/wave/internal/log"
	"github.com/ayusman/wave/internal/store"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the exemplar model artifact",
}

var modelImportCmd = &cobra.Command{
	Use:   "import <dump.json>",
	Short: "Build the model artifact from an exported exemplar dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return importModel(cfg.ModelPath, args[0], os.Stderr)
	},
}

var modelInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the labels and exemplar counts of the model artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return inspectModel(cfg.ModelPath, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{modelImportCmd, modelInspectCmd} {
		d := config.Default()
		c.Flags().String("model", d.ModelPath, "model artifact (default <data-dir>/model.db)")
		c.Flags().String("data-dir", d.DataDir, "data directory")
		c.Flags().String("log-level", d.LogLevel, "log level")
		modelCmd.AddCommand(c)
	}
	rootCmd.AddCommand(modelCmd)
}

// importModel replaces the contents of the artifact at modelPath with the
// dump at dumpPath. progress receives the progress bar.
func importModel(modelPath, dumpPath string, progress io.Writer) error {
	data, err := os.ReadFile(dumpPath)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	labels, exemplars, err := store.DecodeModelDump(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(modelPath), 0755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	st, err := store.New(modelPath)
	if err != nil {
		return fmt.Errorf("open model: %w", err)
	}
	defer st.Close()

	bar := progressbar.NewOptions(len(exemplars),
		progressbar.OptionSetDescription("importing exemplars"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(50*time.Millisecond),
	)
	if err := st.Model().Import(labels, exemplars, func() { bar.Add(1) }); err != nil {
		return fmt.Errorf("import model: %w", err)
	}
	bar.Finish()
	fmt.Fprintln(progress)

	source, err := filepath.Abs(dumpPath)
	if err != nil {
		source = dumpPath
	}
	if err := st.Settings().Set(store.SettingModelSource, source); err != nil {
		return err
	}

	log.Info(log.Fields{"model": modelPath, "labels": labels.String(), "exemplars": len(exemplars)}, "model imported")
	return nil
}

// inspectModel validates the artifact and prints one row per label.
func inspectModel(modelPath string, out io.Writer) error {
	model, err := store.LoadModel(modelPath, nil, 1)
	if err != nil {
		return err
	}

	st, err := store.New(modelPath)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := st.Model().Counts()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "model:     %s\n", modelPath)
	for _, row := range []struct{ name, key string }{
		{"source:", store.SettingModelSource},
		{"imported:", store.SettingModelImportedAt},
	} {
		value, err := st.Settings().Get(row.key)
		if errors.Is(err, store.ErrNotFound) {
			value = "-"
		} else if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-10s %s\n", row.name, value)
	}
	fmt.Fprintf(out, "exemplars: %d\n\n", model.Exemplars)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tEXEMPLARS")
	fmt.Fprintln(w, "--\t-----\t---------")
	for _, id := range model.Labels.IDs() {
		fmt.Fprintf(w, "%d\t%s\t%d\n", id, model.Labels[id], counts[id])
	}
	return w.Flush()
}
