// Package replay records per-tick simulation events as zstd-compressed
// JSONL. Two runs with the same seed and config must produce identical
// event streams; the recorder exists to verify exactly that.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Event is one arbitration or hand-off outcome within a tick.
type Event struct {
	Tick  uint64 `json:"tick"`
	Kind  string `json:"kind"` // grant | deny | handoff | delivery | spawn | power
	Agent uint32 `json:"agent,omitempty"`
	Item  string `json:"item,omitempty"`
	From  [2]int `json:"from,omitempty"`
	To    [2]int `json:"to,omitempty"`

	// Power events only
	Available float64 `json:"available,omitempty"`
	Granted   float64 `json:"granted,omitempty"`
}

// Writer appends events to a zstd-compressed JSONL file.
type Writer struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewWriter creates (or truncates) the event log at path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating replay log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &Writer{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// Append writes one event as a JSON line.
func (w *Writer) Append(ev Event) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	var err1 error
	if err := w.w.Flush(); err != nil {
		err1 = err
	}
	if err := w.enc.Close(); err != nil && err1 == nil {
		err1 = err
	}
	if err := w.f.Close(); err != nil && err1 == nil {
		err1 = err
	}
	return err1
}

// ReadAll decodes every event from a log written by Writer.
func ReadAll(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay log: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var events []Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decoding event: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading replay log: %w", err)
	}
	return events, nil
}
