package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const rawLogMagic = "CLIPRAW1"

// RawLogWriter appends timestamped payloads to a capture log:
// the magic header, then per record 8 bytes unix nanos, 4 bytes length
// (both little endian) and the payload.
type RawLogWriter struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	now func() time.Time
}

func NewRawLogWriter(path string) (*RawLogWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(rawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{
		f:   f,
		w:   w,
		now: time.Now,
	}, nil
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(r.now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

// RawLogEntry is one record read back from a capture log.
type RawLogEntry struct {
	At      time.Time
	Payload []byte
}

type RawLogReader struct {
	f *os.File
	r *bufio.Reader
}

func OpenRawLog(path string) (*RawLogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	header := make([]byte, len(rawLogMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != rawLogMagic {
		_ = f.Close()
		return nil, fmt.Errorf("unexpected raw log magic %q", string(header))
	}
	return &RawLogReader{f: f, r: r}, nil
}

// Next returns the following record, or io.EOF after the last one.
func (r *RawLogReader) Next() (RawLogEntry, error) {
	var meta [12]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return RawLogEntry{}, fmt.Errorf("truncated record header: %w", err)
		}
		return RawLogEntry{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return RawLogEntry{}, fmt.Errorf("read payload: %w", err)
	}
	return RawLogEntry{At: time.Unix(0, ts), Payload: payload}, nil
}

func (r *RawLogReader) Close() error {
	return r.f.Close()
}
