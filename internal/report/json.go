package report

import (
	"encoding/json"
	"io"
)

// FormatJSON writes the result as compact JSON.
func FormatJSON(w io.Writer, result *RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}
