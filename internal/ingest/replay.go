package ingest

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"clipstitch/internal/capture"
	"clipstitch/internal/output"
	"clipstitch/internal/types"
)

// ErrReplayExhausted is returned once every logged capture has been read.
var ErrReplayExhausted = errors.New("capture log exhausted")

// Replay serves the captures of a capture log in order, one per read.
// Clear is a no-op so that a recorded session plays back unchanged.
type Replay struct {
	mu      sync.Mutex
	records []Record
	next    int
}

var _ capture.Port = (*Replay)(nil)

func OpenReplay(path string) (*Replay, error) {
	reader, err := output.OpenRawLog(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []Record
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rec, err := DecodeRecord(entry.Payload)
		if err != nil {
			return nil, fmt.Errorf("record %d in %s: %w", len(records), path, err)
		}
		records = append(records, rec)
	}
	return &Replay{records: records}, nil
}

func NewReplay(records []Record) *Replay {
	return &Replay{records: records}
}

func (r *Replay) Clear() error { return nil }

func (r *Replay) ReadImage() (types.RawCapture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.records) {
		return types.RawCapture{}, &capture.AccessError{Op: "replay", Err: ErrReplayExhausted}
	}
	rec := r.records[r.next]
	r.next++
	return rec.Capture, nil
}

// Remaining reports how many captures have not been served yet.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records) - r.next
}
