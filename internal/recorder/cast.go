package recorder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hiltest/hiltest/internal/archive"
)

// CastVersion is the asciicast format version written and accepted.
const CastVersion = 2

// EventType is the kind of a transcript entry.
type EventType string

const (
	EventOutput EventType = "o"
	EventInput  EventType = "i"
)

// Header is the first line of an asciicast v2 transcript.
type Header struct {
	Version       int               `json:"version"`
	Width         int               `json:"width"`
	Height        int               `json:"height"`
	Timestamp     *int64            `json:"timestamp,omitempty"`
	Duration      *float64          `json:"duration,omitempty"`
	IdleTimeLimit *float64          `json:"idle_time_limit,omitempty"`
	Command       string            `json:"command,omitempty"`
	Title         string            `json:"title,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// DefaultHeader returns the header used when none is configured.
func DefaultHeader() Header {
	return Header{
		Version: CastVersion,
		Width:   80,
		Height:  24,
		Env: map[string]string{
			"SHELL": "/bin/sh",
			"TERM":  "VT100",
		},
	}
}

// Entry is one timestamped event. It is encoded as a three element JSON
// array: [time, type, data].
type Entry struct {
	Time float64
	Type EventType
	Data string
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]any{e.Time, e.Type, e.Data}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("entry must have 3 elements, got %d", len(raw))
	}
	var out Entry
	if err := json.Unmarshal(raw[0], &out.Time); err != nil {
		return fmt.Errorf("entry time: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Type); err != nil {
		return fmt.Errorf("entry type: %w", err)
	}
	if out.Type != EventOutput && out.Type != EventInput {
		return fmt.Errorf("entry type must be %q or %q, got %q", EventOutput, EventInput, out.Type)
	}
	if err := json.Unmarshal(raw[2], &out.Data); err != nil {
		return fmt.Errorf("entry data: %w", err)
	}
	*e = out
	return nil
}

// Cast is a parsed transcript.
type Cast struct {
	Header  Header
	Entries []Entry
}

// Encode writes the header line, one line per entry and a terminating
// blank line.
func (c *Cast) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c.Header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i, entry := range c.Entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", i, err)
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// String returns the encoded transcript.
func (c *Cast) String() string {
	var sb strings.Builder
	_ = c.Encode(&sb)
	return sb.String()
}

// Output concatenates the data of every output entry.
func (c *Cast) Output() string {
	var sb strings.Builder
	for _, e := range c.Entries {
		if e.Type == EventOutput {
			sb.WriteString(e.Data)
		}
	}
	return sb.String()
}

// Duration returns the time of the last entry.
func (c *Cast) Duration() float64 {
	if len(c.Entries) == 0 {
		return 0
	}
	return c.Entries[len(c.Entries)-1].Time
}

// ParseCast reads an asciicast v2 transcript. Blank lines are ignored.
func ParseCast(r io.Reader) (*Cast, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var cast *Cast
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		if cast == nil {
			var h Header
			if err := json.Unmarshal(line, &h); err != nil {
				return nil, fmt.Errorf("invalid header at line %d: %w", lineNum, err)
			}
			if h.Version != CastVersion {
				return nil, fmt.Errorf("line %d: unsupported asciicast version %d", lineNum, h.Version)
			}
			cast = &Cast{Header: h}
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("invalid entry at line %d: %w", lineNum, err)
		}
		cast.Entries = append(cast.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}
	if cast == nil {
		return nil, fmt.Errorf("transcript is empty")
	}
	return cast, nil
}

// SaveCast writes an encoded transcript to path atomically, compressed
// when the path ends in .zst or .lz4.
func SaveCast(path, text string) error {
	if err := archive.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// LoadCast reads and parses a transcript written by SaveCast.
func LoadCast(path string) (*Cast, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer r.Close() //nolint:errcheck // read-only
	cast, err := ParseCast(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cast, nil
}
