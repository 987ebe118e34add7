package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

func newCompareCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [file]",
		Short: "Build a vendor comparison table from extracted quotations",
		Long: `Compare reads a JSON object mapping vendor name to extracted quotation and
prints the item-by-vendor price table. With --format json the matrix is
written as {"vendors": [...], "rows": [...]}.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			format, err := service.ParseFormat(formatName)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			quotes := &quotation.Set{}
			if err := json.Unmarshal(data, quotes); err != nil {
				return fmt.Errorf("failed to read quotations: %w", err)
			}

			reports := c.reports()
			matrix := reports.CompareQuotations(quotes)
			c.log.Debug().Int("vendors", len(matrix.Vendors)).Int("rows", len(matrix.Rows)).Msg("quotations compared")

			return writeOutput(cmd, output, func(w io.Writer) error {
				if format == service.FormatJSON {
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					return enc.Encode(matrix.Document())
				}
				return reports.Write(w, matrix.Blocks(), format)
			})
		},
	}

	cmd.Flags().StringP("format", "f", "text", "output format (json, text, pdf)")
	cmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	return cmd
}
