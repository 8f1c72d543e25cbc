package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pebbe/zmq4"

	"clipstitch/internal/capture"
	"clipstitch/internal/ingest"
)

// clipstitch-push feeds image files to a clipstitch running with
// -source remote. Files are sent in argument order with a pause between
// them, long enough for the receiver to clear its queue between captures.
func main() {
	var (
		bind = flag.String("bind", "tcp://*:31001", "ZMQ endpoint to bind the PUSH socket to")
		gap  = flag.Duration("gap", 3*time.Second, "Pause between two captures")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: clipstitch-push [-bind endpoint] [-gap 3s] <image> [image...]\n")
		os.Exit(1)
	}

	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		log.Fatalf("create socket: %v", err)
	}
	defer socket.Close()
	if err := socket.SetLinger(5 * time.Second); err != nil {
		log.Fatalf("set linger: %v", err)
	}
	if err := socket.Bind(*bind); err != nil {
		log.Fatalf("bind %s: %v", *bind, err)
	}

	runID := uuid.NewString()
	for i, path := range files {
		if i > 0 {
			time.Sleep(*gap)
		}
		payload, err := encodeFile(path, runID)
		if err != nil {
			log.Fatalf("%s: %v", path, err)
		}
		// Blocks until a receiver is connected.
		if _, err := socket.SendBytes(payload, 0); err != nil {
			log.Fatalf("send %s: %v", path, err)
		}
		log.Printf("pushed %s (%d bytes)", path, len(payload))
	}
}

func encodeFile(path string, runID string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ingest.EncodeRecord(ingest.Record{
		RunID:      runID,
		CapturedAt: time.Now(),
		Capture:    capture.FromImage(img),
	})
}
