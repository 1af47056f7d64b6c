package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬┌─┐┌┬┐
  └─┐│├┤  │
  └─┘┴┴    ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "siftctl",
		Short: "Inspect and convert sift filter state",
		Long: `siftctl works with the payloads and records a sift engine reads
and writes:

  • Encode key=value filters into URL payloads (flat or Base64)
  • Decode payloads back into typed filters
  • Validate TOML schema files, including the dependency cycle check
  • Inspect persisted records (version, write time, filters)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		encodeCmd(),
		decodeCmd(),
		schemaCmd(),
		recordCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var coded *sifterrors.SiftError
		if errors.As(err, &coded) {
			fmt.Fprintln(os.Stderr, coded.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

// printBanner prints the sift ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
