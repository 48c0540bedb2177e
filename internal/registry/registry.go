// Package registry loads the registered faces sheet from the attendance
// workbook and encodes each photo through the encoder service.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
)

var (
	// ErrWorkbookMissing means the attendance workbook does not exist.
	ErrWorkbookMissing = errors.New("attendance workbook not found")
	// ErrImageMissing means a registry row points at a missing image file.
	ErrImageMissing = errors.New("registered image not found")
	// ErrNoFaceDetected means the encoder found zero faces in a registry image.
	ErrNoFaceDetected = errors.New("no face detected in registered image")
)

// RegisteredFace is one row of the registered faces sheet plus the
// encoding of the first face found in its image.
type RegisteredFace struct {
	Name string
	// ImagePath is the photo path with relative sheet values already
	// resolved against the workbook directory.
	ImagePath string
	Encoding  faceenc.Encoding
}

// Registry holds all registered faces in sheet order. It is loaded once
// at startup and immutable afterwards.
type Registry struct {
	entries []RegisteredFace
}

// New builds a registry from already-encoded entries. Load is the
// normal path; New exists for callers that bring their own encodings.
func New(entries []RegisteredFace) *Registry {
	return &Registry{entries: entries}
}

// Load reads the registered faces sheet and encodes every photo. Any
// failure aborts the load; a partial registry is never returned.
// Relative image paths are resolved against the workbook's directory.
func Load(ctx context.Context, workbookPath, sheetName string, enc *faceenc.Client) (*Registry, error) {
	if _, err := os.Stat(workbookPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWorkbookMissing, workbookPath)
	}

	f, err := excelize.OpenFile(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing workbook: %v\n", err)
		}
	}()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}

	baseDir := filepath.Dir(workbookPath)
	var entries []RegisteredFace

	// First row is the header (Image Path, Name).
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		imagePath := strings.TrimSpace(row[0])
		name := NormalizeName(row[1])

		resolved := imagePath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, resolved)
		}

		imageData, err := os.ReadFile(resolved)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s (row %d)", ErrImageMissing, imagePath, i+1)
			}
			return nil, fmt.Errorf("failed to read image %s: %w", imagePath, err)
		}

		result, err := enc.EncodeFaces(ctx, imageData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image %s: %w", imagePath, err)
		}
		if result.FacesCount == 0 || len(result.Faces) == 0 {
			return nil, fmt.Errorf("%w: %s (row %d)", ErrNoFaceDetected, imagePath, i+1)
		}

		// Images with multiple faces use the first detected face only.
		entries = append(entries, RegisteredFace{
			Name:      name,
			ImagePath: resolved,
			Encoding:  result.Faces[0].Encoding,
		})
	}

	return &Registry{entries: entries}, nil
}

// Len returns the number of registered faces.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns all registered faces in sheet order.
func (r *Registry) Entries() []RegisteredFace {
	return r.entries
}

// Encodings returns all encodings, order-preserving relative to the
// sheet rows. The index into this slice is the registry index.
func (r *Registry) Encodings() []faceenc.Encoding {
	encodings := make([]faceenc.Encoding, len(r.entries))
	for i, e := range r.entries {
		encodings[i] = e.Encoding
	}
	return encodings
}

// NameAt returns the name at the given registry index.
func (r *Registry) NameAt(i int) string {
	return r.entries[i].Name
}

// NormalizeName applies NFKC normalization and trims surrounding space.
// Half-width and full-width variants of the same name collapse to one
// identity.
func NormalizeName(name string) string {
	return strings.TrimSpace(norm.NFKC.String(name))
}
