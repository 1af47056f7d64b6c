package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sift-dev/sift/pkg/storage"
)

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Inspect persisted filter records",
	}
	cmd.AddCommand(recordInspectCmd())
	return cmd
}

func recordInspectCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a stored record's version, write time and filters",
		Long: `Inspect reads a persisted record and prints what it carries. The file
may be a bare record (the JSON written to a single adapter slot) or a
file-adapter store holding several keyed records, in which case --key
selects one.

Examples:
  siftctl record inspect record.json
  siftctl record inspect state.json --key sift:filters`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			payload := string(raw)

			// File adapters persist a key-to-record mapping; a bare record
			// fails this unmarshal and is decoded as-is below.
			var items map[string]string
			if err := json.Unmarshal(raw, &items); err == nil {
				v, ok := items[key]
				if !ok {
					present := make([]string, 0, len(items))
					for k := range items {
						present = append(present, k)
					}
					sort.Strings(present)
					return fmt.Errorf("no record under key %q; file holds: %s",
						key, strings.Join(present, ", "))
				}
				payload = v
			}

			rec, err := storage.DecodeRecord(payload)
			if err != nil {
				return err
			}

			if rec.Version == "" {
				warn("record carries no version stamp")
			} else {
				info("version   %s", rec.Version)
			}
			if rec.Timestamp > 0 {
				info("written   %s", time.UnixMilli(rec.Timestamp).UTC().Format(time.RFC3339))
			}
			if len(rec.Filters) == 0 {
				info("filters   (none)")
				return nil
			}

			keys := make([]string, 0, len(rec.Filters))
			for k := range rec.Filters {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				info("%-16s %v", k, rec.Filters[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "sift:filters", "adapter key when the file holds a keyed store")

	return cmd
}
