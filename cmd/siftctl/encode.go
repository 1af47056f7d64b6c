package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	sifterrors "github.com/sift-dev/sift/internal/errors"
	"github.com/sift-dev/sift/pkg/codec"
	"github.com/sift-dev/sift/pkg/filter"
)

func encodeCmd() *cobra.Command {
	var (
		schemaPath string
		useBase64  bool
	)

	cmd := &cobra.Command{
		Use:   "encode key=value [key=value ...]",
		Short: "Serialize filter assignments into a URL payload",
		Long: `Encode turns key=value assignments into the payload a sift engine
writes to the URL. Repeat a key to build a list value. With --schema the
values are coerced to their declared kinds first, so numbers and dates
round-trip typed.

Examples:
  siftctl encode search=laptop count=3
  siftctl encode tag=a tag=b --base64
  siftctl encode count=3 --schema filters.toml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vals, err := parseAssignments(args)
			if err != nil {
				return err
			}

			if schemaPath != "" {
				schema, _, err := loadSchema(schemaPath)
				if err != nil {
					return err
				}
				for key, raw := range vals {
					coerced, err := schema.Coerce(key, raw)
					if err != nil {
						return err
					}
					if coerced == nil {
						delete(vals, key)
						continue
					}
					vals[key] = coerced
				}
			}

			payload, err := codec.Encode(vals, useBase64)
			if err != nil {
				return err
			}
			fmt.Println(payload)
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "TOML schema file used to coerce values to their kinds")
	cmd.Flags().BoolVar(&useBase64, "base64", false, "emit the Base64 JSON payload instead of a flat query string")

	return cmd
}

// parseAssignments builds filter values from key=value arguments. A key
// given more than once becomes a list.
func parseAssignments(args []string) (filter.Values, error) {
	vals := filter.Values{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, sifterrors.New("E120").
				WithMessagef("argument %q is not of the form key=value", arg).
				WithSuggestion("Write assignments as key=value, for example search=laptop")
		}
		switch existing := vals[key].(type) {
		case nil:
			vals[key] = raw
		case []any:
			vals[key] = append(existing, raw)
		default:
			vals[key] = []any{existing, raw}
		}
	}
	return vals, nil
}
