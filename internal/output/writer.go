package output

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"clipstitch/internal/types"
)

// FilePrefix starts every saved file name.
const FilePrefix = "doubao_image_"

// PersistenceError wraps any failure to produce the output file.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save image %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Filename is the output name for a save at t. Two saves within the same
// second share a name and the later one overwrites.
func Filename(t time.Time) string {
	return fmt.Sprintf("%s%d.png", FilePrefix, t.Unix())
}

// DesktopDir resolves <home>/Desktop where home is USERPROFILE, then HOME,
// then the current directory.
func DesktopDir(getenv func(string) string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	home := getenv("USERPROFILE")
	if home == "" {
		home = getenv("HOME")
	}
	if home == "" {
		home = "."
	}
	return filepath.Join(home, "Desktop")
}

// Persister writes the final image as PNG.
type Persister struct {
	Dir string
	Now func() time.Time
}

func NewPersister(dir string) *Persister {
	if dir == "" {
		dir = DesktopDir(os.Getenv)
	}
	return &Persister{Dir: dir, Now: time.Now}
}

func (p *Persister) Save(img image.Image) (types.SavedArtifact, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	path := filepath.Join(p.Dir, Filename(now()))

	f, err := os.Create(path)
	if err != nil {
		return types.SavedArtifact{}, &PersistenceError{Path: path, Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return types.SavedArtifact{}, &PersistenceError{Path: path, Err: fmt.Errorf("png encode: %w", err)}
	}
	if err := f.Close(); err != nil {
		return types.SavedArtifact{}, &PersistenceError{Path: path, Err: err}
	}

	b := img.Bounds()
	return types.SavedArtifact{Path: path, Width: b.Dx(), Height: b.Dy()}, nil
}
