package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/chain"
)

// ValidationResult represents the validation outcome for a single file.
type ValidationResult struct {
	File   string   `json:"file"`
	Kind   string   `json:"kind"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// File kinds accepted by validate.
const (
	fileKindBatch = "batch"
	fileKindChain = "chain"
)

var validateFormatFlag string

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate batch and chain config files",
	Long: `Validate one or more batch or chain config files without connecting to
any target.

Chain configs are recognized by a .json or .jsonc extension or by a
top-level "transport" key. Everything else is checked as a batch: strict
YAML parsing, one kind per step, positive timeouts and variable rendering.

Exit code 0 if all files are valid, 1 if any file has errors.

Formats:
  text   Human-readable output to stderr (default)
  json   Structured JSON to stdout

Examples:
  hiltest validate smoke.yaml
  hiltest validate board.yaml boot.yaml flash.yaml
  hiltest validate --format json smoke.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text",
		"Output format: text, json")
	rootCmd.AddCommand(validateCmd)
}

// runValidate validates each file independently and reports all results.
func runValidate(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(validateFormatFlag)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json", validateFormatFlag)
	}

	results := make([]ValidationResult, 0, len(args))
	hasErrors := false
	for _, path := range args {
		result := validateFile(path)
		results = append(results, result)
		if !result.Valid {
			hasErrors = true
		}
	}

	switch format {
	case "text":
		formatValidateText(cmd.ErrOrStderr(), results)
	case "json":
		if err := formatValidateJSON(cmd.OutOrStdout(), results); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	}

	if hasErrors {
		return &exitError{code: 1}
	}
	return nil
}

// validateFile loads path as a chain config or a batch and collects every
// problem found.
func validateFile(path string) ValidationResult {
	data, err := os.ReadFile(path) //nolint:gosec // path from args
	if err != nil {
		return ValidationResult{File: path, Valid: false, Errors: []string{err.Error()}}
	}

	kind := detectFileKind(path, data)
	result := ValidationResult{File: path, Kind: kind, Errors: []string{}}
	if kind == fileKindChain {
		if _, err := chain.LoadFile(path); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	} else {
		result.Errors = append(result.Errors, validateBatch(path)...)
	}
	result.Valid = len(result.Errors) == 0
	return result
}

func validateBatch(path string) []string {
	b, err := batch.LoadFile(path)
	if err != nil {
		return []string{err.Error()}
	}
	if _, _, err := b.Render(); err != nil {
		return []string{err.Error()}
	}
	return nil
}

// detectFileKind tells chain configs from batches.
func detectFileKind(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return fileKindChain
	}
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err == nil {
		if _, ok := top["transport"]; ok {
			return fileKindChain
		}
	}
	return fileKindBatch
}

// formatValidateText writes human-readable validation results.
func formatValidateText(w io.Writer, results []ValidationResult) {
	validCount := 0
	for _, r := range results {
		if r.Valid {
			validCount++
			fmt.Fprintf(w, "✓ %s: valid %s\n", r.File, r.Kind)
		} else {
			fmt.Fprintf(w, "✗ %s:\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  - %s\n", e)
			}
		}
	}

	if len(results) > 1 {
		fmt.Fprintf(w, "\nResult: %d/%d files valid\n", validCount, len(results))
	}
}

// formatValidateJSON writes JSON-encoded validation results.
func formatValidateJSON(w io.Writer, results []ValidationResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
