package capture

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"clipstitch/internal/types"
)

// DefaultPollInterval is the pause between two clipboard reads.
const DefaultPollInterval = 200 * time.Millisecond

// Attempts returns the endless sequence of reads from port, one every
// interval. The sequence has no timeout of its own; it stops only when the
// consumer stops ranging or ctx is cancelled, in which case the final
// element carries ctx.Err().
func Attempts(ctx context.Context, port Port, interval time.Duration) iter.Seq2[types.RawCapture, error] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return func(yield func(types.RawCapture, error) bool) {
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				yield(types.RawCapture{}, ctx.Err())
				return
			case <-timer.C:
			}
			raw, err := port.ReadImage()
			if !yield(raw, err) {
				return
			}
			timer.Reset(interval)
		}
	}
}

// WaitForImage blocks until port yields a capture with a non-zero width
// and height. Missing images and empty captures are retried; an
// *AccessError or context cancellation ends the wait.
func WaitForImage(ctx context.Context, port Port, interval time.Duration) (types.RawCapture, error) {
	retries := 0
	for raw, err := range Attempts(ctx, port, interval) {
		switch {
		case err == nil && raw.HasArea():
			slog.Debug("clipboard image acquired", "width", raw.Width, "height", raw.Height, "retries", retries)
			return raw, nil
		case err == nil, errors.Is(err, ErrNoImagePresent):
			retries++
		default:
			return types.RawCapture{}, err
		}
	}
	// Attempts only ends on its own after reporting ctx.Err().
	return types.RawCapture{}, ctx.Err()
}
