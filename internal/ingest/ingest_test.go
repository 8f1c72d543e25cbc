package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"clipstitch/internal/capture"
	"clipstitch/internal/types"
)

func TestDecodeRecordCapture(t *testing.T) {
	msg := map[string]any{
		"type":        "capture",
		"run_id":      "run-7",
		"captured_at": int64(1_250_000_000),
		"width":       2,
		"height":      1,
		"format":      "rgba8",
		"pixels":      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	payload, err := cbor.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	rec, err := DecodeRecord(payload)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rec.RunID != "run-7" {
		t.Fatalf("unexpected run id %q", rec.RunID)
	}
	if !rec.CapturedAt.Equal(time.Unix(1, 250_000_000)) {
		t.Fatalf("unexpected timestamp %v", rec.CapturedAt)
	}
	if rec.Capture.Width != 2 || rec.Capture.Height != 1 || len(rec.Capture.Pixels) != 8 {
		t.Fatalf("unexpected capture %+v", rec.Capture)
	}
}

func TestDecodeRecordRejectsOtherMessages(t *testing.T) {
	payload, err := cbor.Marshal(map[string]any{"type": "image", "image_id": 7})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if _, err := DecodeRecord(payload); err == nil {
		t.Fatalf("expected error for foreign message type")
	}
	if _, err := DecodeRecord([]byte{0xff, 0x00}); err == nil {
		t.Fatalf("expected error for garbage payload")
	}
}

func TestEncodeRecordDefaultsFormat(t *testing.T) {
	payload, err := EncodeRecord(Record{Capture: types.RawCapture{Width: 1, Height: 1, Pixels: []byte{0, 0, 0, 0}}})
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	rec, err := DecodeRecord(payload)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rec.Capture.Format != types.FormatRGBA8 {
		t.Fatalf("unexpected format %q", rec.Capture.Format)
	}
}

func TestReplayServesInOrderThenFails(t *testing.T) {
	replay := NewReplay([]Record{
		{Capture: types.RawCapture{Width: 1, Height: 1}},
		{Capture: types.RawCapture{Width: 2, Height: 2}},
	})
	if err := replay.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for _, want := range []uint32{1, 2} {
		raw, err := replay.ReadImage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if raw.Width != want {
			t.Fatalf("got width %d, want %d", raw.Width, want)
		}
	}
	_, err := replay.ReadImage()
	var access *capture.AccessError
	if !errors.As(err, &access) || !errors.Is(err, ErrReplayExhausted) {
		t.Fatalf("expected exhausted access error, got %v", err)
	}
}

func TestRemoteReceivesAndClears(t *testing.T) {
	const endpoint = "inproc://clipstitch-remote-test"
	push, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		t.Fatalf("push socket: %v", err)
	}
	defer push.Close()
	if err := push.Bind(endpoint); err != nil {
		t.Fatalf("bind: %v", err)
	}

	remote, err := Dial(endpoint)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer remote.Close()

	if _, err := remote.ReadImage(); !errors.Is(err, capture.ErrNoImagePresent) {
		t.Fatalf("expected no image on empty feed, got %v", err)
	}

	send := func(w uint32) {
		payload, err := EncodeRecord(Record{Capture: types.RawCapture{Width: w, Height: 1, Pixels: make([]byte, w*4)}})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := push.SendBytes(payload, 0); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	send(3)
	deadline := time.Now().Add(2 * time.Second)
	var raw types.RawCapture
	for {
		raw, err = remote.ReadImage()
		if err == nil || !errors.Is(err, capture.ErrNoImagePresent) || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if raw.Width != 3 {
		t.Fatalf("unexpected width %d", raw.Width)
	}

	send(5)
	time.Sleep(50 * time.Millisecond)
	if err := remote.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := remote.ReadImage(); !errors.Is(err, capture.ErrNoImagePresent) {
		t.Fatalf("expected clear to drop queued capture, got %v", err)
	}
}
