package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReplayDevice serves JPEG files from a directory in name order. Used by
// tests and by the --simulate flag when no camera is attached. Once the
// directory is exhausted it reports ErrFrameRead, like a camera that
// stopped delivering frames.
type ReplayDevice struct {
	frames []string
	next   int
}

// Replay opens a replay device over the JPEG files in dir.
func Replay(dir string) (*ReplayDevice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay directory: %w", err)
	}

	var frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") {
			frames = append(frames, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(frames)

	return &ReplayDevice{frames: frames}, nil
}

func (d *ReplayDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.next >= len(d.frames) {
		return nil, ErrFrameRead
	}

	data, err := os.ReadFile(d.frames[d.next])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameRead, err)
	}
	d.next++
	return data, nil
}

func (d *ReplayDevice) Close() error {
	return nil
}
