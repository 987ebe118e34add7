package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

func newRenderCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a JSON document into a report",
		Long: `Render reads a JSON document (or generated text) from a file, or stdin
when the file is "-" or omitted, and writes it as json blocks, text or PDF.
Input that is not JSON is rendered verbatim under a Content heading.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			kind, _ := cmd.Flags().GetString("kind")
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
			doc, err := document.Parse(data)
			if err != nil {
				doc = document.StringValue(string(data))
			}

			reports := c.reports()
			blocks := reports.RenderDocument(doc, title, kind)
			c.log.Debug().Int("blocks", len(blocks)).Str("format", string(format)).Msg("document rendered")

			return writeOutput(cmd, output, func(w io.Writer) error {
				return reports.Write(w, blocks, format)
			})
		},
	}

	cmd.Flags().String("title", "", "document title")
	cmd.Flags().String("kind", "", "document kind shown before the title, e.g. RFQ")
	cmd.Flags().StringP("format", "f", "text", "output format (json, text, pdf)")
	cmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
