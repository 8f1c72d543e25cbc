package ingest

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"clipstitch/internal/types"
)

const messageTypeCapture = "capture"

// Record is one capture as it travels over the remote feed or sits in a
// capture log.
type Record struct {
	RunID      string
	CapturedAt time.Time
	Capture    types.RawCapture
}

// Expects CBOR maps shaped like:
// { "type": "capture", "run_id": <str>, "captured_at": <unix nanos>,
//   "width": <uint>, "height": <uint>, "format": "rgba8", "pixels": <bytes> }
type wireCapture struct {
	Type       string `cbor:"type"`
	RunID      string `cbor:"run_id,omitempty"`
	CapturedAt int64  `cbor:"captured_at"`
	Width      uint32 `cbor:"width"`
	Height     uint32 `cbor:"height"`
	Format     string `cbor:"format"`
	Pixels     []byte `cbor:"pixels"`
}

func EncodeRecord(rec Record) ([]byte, error) {
	format := rec.Capture.Format
	if format == "" {
		format = types.FormatRGBA8
	}
	return cbor.Marshal(wireCapture{
		Type:       messageTypeCapture,
		RunID:      rec.RunID,
		CapturedAt: rec.CapturedAt.UnixNano(),
		Width:      rec.Capture.Width,
		Height:     rec.Capture.Height,
		Format:     format,
		Pixels:     rec.Capture.Pixels,
	})
}

func DecodeRecord(payload []byte) (Record, error) {
	var msg wireCapture
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return Record{}, fmt.Errorf("decode capture: %w", err)
	}
	if msg.Type != messageTypeCapture {
		return Record{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return Record{
		RunID:      msg.RunID,
		CapturedAt: time.Unix(0, msg.CapturedAt),
		Capture: types.RawCapture{
			Width:  msg.Width,
			Height: msg.Height,
			Format: msg.Format,
			Pixels: msg.Pixels,
		},
	}, nil
}

// RawRecorder persists encoded records, typically an output.RawLogWriter.
type RawRecorder interface {
	Record(payload []byte) error
}

// RecordCapture encodes raw and hands it to rec.
func RecordCapture(rec RawRecorder, runID string, raw types.RawCapture, at time.Time) error {
	payload, err := EncodeRecord(Record{RunID: runID, CapturedAt: at, Capture: raw})
	if err != nil {
		return err
	}
	return rec.Record(payload)
}
