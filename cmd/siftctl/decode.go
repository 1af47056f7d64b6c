package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/filter"
)

func decodeCmd() *cobra.Command {
	var (
		schemaPath string
		useBase64  bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "decode <payload>",
		Short: "Parse a URL payload back into filters",
		Long: `Decode parses a payload previously written by a sift engine (or by
siftctl encode) and prints the filters it carries. With --schema the
values come back typed; without one everything is a string.

Examples:
  siftctl decode 'search=laptop&count=3'
  siftctl decode eyJzZWFyY2giOiJsYXB0b3AifQ --base64
  siftctl decode 'count=3' --schema filters.toml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema *filter.Schema
			if schemaPath != "" {
				loaded, _, err := loadSchema(schemaPath)
				if err != nil {
					return err
				}
				schema = loaded
			}

			vals, err := codec.Decode(args[0], useBase64, schema)
			if err != nil {
				return err
			}

			if asJSON {
				raw, err := json.MarshalIndent(codec.Sanitize(vals), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			if vals.IsEmpty() {
				info("payload carries no filters")
				return nil
			}
			for _, key := range vals.Keys() {
				info("%-16s %v", key, vals[key])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML schema file used to restore typed values")
	cmd.Flags().BoolVar(&useBase64, "base64", false, "treat the payload as a Base64 JSON document")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the filters as indented JSON")

	return cmd
}
