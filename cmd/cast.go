package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/recorder"
)

// CastSummary describes a transcript file.
type CastSummary struct {
	File          string  `json:"file"`
	Version       int     `json:"version"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Title         string  `json:"title,omitempty"`
	Duration      float64 `json:"duration"`
	Entries       int     `json:"entries"`
	OutputEntries int     `json:"output_entries"`
	InputEntries  int     `json:"input_entries"`
}

var (
	castFormatFlag  string
	castConvertFlag string
)

var castCmd = &cobra.Command{
	Use:   "cast <file.cast>",
	Short: "Inspect a recorded transcript",
	Long: `Inspect an asciicast v2 transcript written by run --record or record.

Compressed transcripts (.zst, .lz4) are decompressed transparently.

Formats:
  text   Print the recorded output (default)
  json   Print a summary of the header and entries

Examples:
  hiltest cast boot.cast.zst
  hiltest cast --format json boot.cast
  hiltest cast --convert boot.cast.lz4 boot.cast`,
	Args: cobra.ExactArgs(1),
	RunE: runCast,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	castCmd.Flags().StringVar(&castFormatFlag, "format", "text", "Output format: text, json")
	castCmd.Flags().StringVar(&castConvertFlag, "convert", "", "Re-encode the transcript to this path, compressed by extension")
	rootCmd.AddCommand(castCmd)
}

func runCast(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(castFormatFlag)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json", castFormatFlag)
	}

	c, err := recorder.LoadCast(args[0])
	if err != nil {
		return err
	}

	if castConvertFlag != "" {
		if err := recorder.SaveCast(castConvertFlag, c.String()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %d entries to %s\n", len(c.Entries), castConvertFlag)
		return nil
	}

	if format == "json" {
		return writeCastSummary(cmd.OutOrStdout(), summarizeCast(args[0], c))
	}
	_, err = io.WriteString(cmd.OutOrStdout(), c.Output())
	return err
}

func summarizeCast(file string, c *recorder.Cast) CastSummary {
	s := CastSummary{
		File:     file,
		Version:  c.Header.Version,
		Width:    c.Header.Width,
		Height:   c.Header.Height,
		Title:    c.Header.Title,
		Duration: c.Duration(),
		Entries:  len(c.Entries),
	}
	for _, e := range c.Entries {
		switch e.Type {
		case recorder.EventOutput:
			s.OutputEntries++
		case recorder.EventInput:
			s.InputEntries++
		}
	}
	return s
}

func writeCastSummary(w io.Writer, s CastSummary) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
