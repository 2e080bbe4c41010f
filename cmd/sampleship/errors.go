package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/orion-sense/sampleship/internal/adapters/fs"
	"github.com/orion-sense/sampleship/internal/cliconfig"
	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/pkg/log"
)

// newErrorsCommand builds the operator interface to the quarantine:
// read-only listing, inspection, and export of samples that exhausted
// their retry budget. Nothing here re-injects entries automatically.
func newErrorsCommand(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Inspect quarantined samples",
	}
	cmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "root directory for durable state")
	cmd.PersistentFlags().StringVar(&cfg.ErrorDir, "error-dir", cfg.ErrorDir, "quarantine directory (default <data-dir>/errors)")

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List quarantined samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openErrorStore(cmd, cfg, cfgPath)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "quarantine is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Sample.ID,
					e.QuarantinedAt.UTC().Format(time.RFC3339),
					fmt.Sprintf("%d", e.AttemptCount),
					string(e.LastError),
					e.Detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "QUARANTINED", "ATTEMPTS", "KIND", "DETAIL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "show only the most recent N entries")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one quarantined sample as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openErrorStore(cmd, cfg, cfgPath)
			if err != nil {
				return err
			}
			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := struct {
				ID              string           `json:"id"`
				CapturedAt      time.Time        `json:"captured_at"`
				DurationSeconds int              `json:"duration_seconds"`
				AttemptCount    int              `json:"attempt_count"`
				Kind            domain.ErrorKind `json:"error_kind"`
				Detail          string           `json:"error_detail"`
				QuarantinedAt   time.Time        `json:"quarantined_at"`
				PayloadBytes    int              `json:"payload_bytes"`
			}{
				ID:              entry.Sample.ID,
				CapturedAt:      entry.Sample.CapturedAt,
				DurationSeconds: entry.Sample.DurationSeconds,
				AttemptCount:    entry.AttemptCount,
				Kind:            entry.LastError,
				Detail:          entry.Detail,
				QuarantinedAt:   entry.QuarantinedAt,
				PayloadBytes:    len(entry.Sample.Payload),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	var outDir string
	export := &cobra.Command{
		Use:   "export",
		Short: "Copy all quarantined payloads and metadata to a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return fmt.Errorf("--dir is required")
			}
			store, err := openErrorStore(cmd, cfg, cfgPath)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return err
			}
			for _, e := range entries {
				full, err := store.Get(cmd.Context(), e.Sample.ID)
				if err != nil {
					return err
				}
				metaOut := filepath.Join(outDir, e.Sample.ID+".json")
				payloadOut := filepath.Join(outDir, e.Sample.ID+".payload")
				meta, err := json.MarshalIndent(full, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(metaOut, meta, 0o600); err != nil {
					return err
				}
				if err := copyFile(store.PayloadPath(e.Sample.ID), payloadOut); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), outDir)
			return nil
		},
	}
	export.Flags().StringVar(&outDir, "dir", "", "destination directory")

	cmd.AddCommand(list, show, export)
	return cmd
}

// openErrorStore resolves the quarantine directory from config file,
// environment and flags, then opens it read-only (the fs store never
// mutates without an explicit Quarantine call).
func openErrorStore(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath *string) (*fs.ErrorStore, error) {
	cfgFile := *cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return nil, err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return nil, err
	}

	errorDir := cfg.ErrorDir
	if errorDir == "" {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("error-dir (or data-dir) is required")
		}
		errorDir = filepath.Join(cfg.DataDir, "errors")
	}

	return fs.NewErrorStore(errorDir, log.NewNoopLogger())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
