package ingest

import (
	"errors"
	"fmt"
	"log"
	"syscall"

	"github.com/pebbe/zmq4"

	"clipstitch/internal/capture"
	"clipstitch/internal/types"
)

// Remote is a capture port fed over a ZeroMQ PULL socket, so that images
// copied on another machine can be stitched here. Each ReadImage takes at
// most one queued message and never blocks.
type Remote struct {
	socket   *zmq4.Socket
	logEvery int
}

var _ capture.Port = (*Remote)(nil)

func Dial(endpoint string) (*Remote, error) {
	return DialWithLogEvery(endpoint, 1)
}

func DialWithLogEvery(endpoint string, logEvery int) (*Remote, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, &capture.AccessError{Op: "open", Err: err}
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, &capture.AccessError{Op: "connect " + endpoint, Err: err}
	}
	return &Remote{socket: socket, logEvery: logEvery}, nil
}

// Clear drops every message queued so far.
func (r *Remote) Clear() error {
	dropped := 0
	for {
		_, err := r.socket.RecvBytes(zmq4.DONTWAIT)
		if err != nil {
			if wouldBlock(err) {
				if dropped > 0 {
					log.Printf("remote feed: dropped %d queued captures", dropped)
				}
				return nil
			}
			return &capture.AccessError{Op: "clear", Err: err}
		}
		dropped++
	}
}

func (r *Remote) ReadImage() (types.RawCapture, error) {
	msg, err := r.socket.RecvBytes(zmq4.DONTWAIT)
	if err != nil {
		if wouldBlock(err) {
			return types.RawCapture{}, capture.ErrNoImagePresent
		}
		return types.RawCapture{}, &capture.AccessError{Op: "receive", Err: err}
	}
	rec, err := DecodeRecord(msg)
	if err != nil {
		logEveryN(r.logEvery, "remote feed decode error: %v", err)
		return types.RawCapture{}, fmt.Errorf("%w: %v", capture.ErrNoImagePresent, err)
	}
	return rec.Capture, nil
}

func (r *Remote) Close() error {
	return r.socket.Close()
}

func wouldBlock(err error) bool {
	return zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) || errors.Is(err, syscall.EAGAIN)
}

var logCounter int

func logEveryN(n int, format string, args ...any) {
	logCounter++
	if logCounter%n == 0 {
		log.Printf(format, args...)
	}
}
