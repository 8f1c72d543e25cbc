package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"clipstitch/internal/ingest"
	"clipstitch/internal/output"
	"clipstitch/internal/processing"
)

func main() {
	var (
		path   = flag.String("path", "", "Path to a capture log written with -capture-log")
		limit  = flag.Int("limit", 0, "Number of records to dump (0 = all)")
		export = flag.String("export", "", "Directory to write each capture as PNG (optional)")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	reader, err := output.OpenRawLog(*path)
	if err != nil {
		log.Fatalf("open capture log: %v", err)
	}
	defer reader.Close()

	if *export != "" {
		if err := os.MkdirAll(*export, 0o755); err != nil {
			log.Fatalf("create export dir: %v", err)
		}
	}

	count := 0
	for {
		if *limit > 0 && count >= *limit {
			return
		}
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			fmt.Printf("summary: records=%d\n", count)
			return
		}
		if err != nil {
			log.Fatalf("read record %d: %v", count, err)
		}

		rec, err := ingest.DecodeRecord(entry.Payload)
		if err != nil {
			log.Printf("record %d: decode error: %v", count, err)
			count++
			continue
		}

		raw := rec.Capture
		fmt.Printf("record %d logged=%s captured=%s run=%s size=%dx%d format=%s bytes=%d\n",
			count,
			entry.At.Format(time.RFC3339Nano),
			rec.CapturedAt.Format(time.RFC3339Nano),
			rec.RunID,
			raw.Width,
			raw.Height,
			raw.Format,
			len(raw.Pixels),
		)

		if *export != "" {
			if err := exportPNG(*export, count, rec); err != nil {
				log.Printf("record %d: export failed: %v", count, err)
			}
		}
		count++
	}
}

func exportPNG(dir string, index int, rec ingest.Record) error {
	img, err := processing.Decode(rec.Capture)
	if err != nil {
		return err
	}
	name := filepath.Join(dir, fmt.Sprintf("capture_%03d_%dx%d.png", index, rec.Capture.Width, rec.Capture.Height))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	fmt.Printf("  exported %s\n", name)
	return f.Close()
}
