package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/matrixscan/internal/handoff"
)

// reviewCmd represents the review command.
var reviewCmd = &cobra.Command{
	Use:   "review <handoff-file>",
	Short: "Show the barcode list of a finished session",
	Long: `Read a hand-off file written at the end of a scanning session and show
its barcodes in scan order.

The file is rejected as a whole if any record is malformed.

Examples:
  matrixscan review scanned.json
  matrixscan review scanned.yaml --format json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		list, err := handoff.ReadFile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch cfg.Output.Format {
		case outputFormatText:
			var werr error
			writeBarcodeList(func(format string, a ...any) {
				if _, err := fmt.Fprintf(out, format, a...); err != nil && werr == nil {
					werr = err
				}
			}, list)
			return werr
		case outputFormatJSON:
			return handoff.Encode(out, list, handoff.FormatJSON)
		case outputFormatYAML:
			return handoff.Encode(out, list, handoff.FormatYAML)
		}
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", cfg.Output.Format)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json, yaml)")
	bindFlag(reviewCmd.Flags(), "format", "output.format")
}
