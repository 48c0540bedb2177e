// Package capture runs one recognition session: frames from the camera
// are encoded, matched against the registry, and unioned into a
// recognized-identity set until the session is stopped or the camera
// fails.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
	"github.com/kozaktomas/attendance-kiosk/internal/matcher"
)

// UnknownLabel marks a face without a registry match.
const UnknownLabel = "Unknown"

// Encoder computes face encodings for a JPEG frame. Satisfied by
// *faceenc.Client.
type Encoder interface {
	EncodeFaces(ctx context.Context, imageData []byte) (*faceenc.Result, error)
}

// FaceBox is one matched face in a frame event.
type FaceBox struct {
	BBox     []float64 `json:"bbox"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance,omitempty"`
	Matched  bool      `json:"matched"`
}

// FrameEvent describes one processed frame.
type FrameEvent struct {
	Seq   int       `json:"seq"`
	Faces []FaceBox `json:"faces"`
	// JPEG is the annotated preview frame; empty when the frame could
	// not be decoded for annotation.
	JPEG []byte `json:"-"`
}

// Result is the outcome of a session.
type Result struct {
	// Recognized identities, deduplicated and sorted.
	Recognized []string
	// Frames processed, including frames where encoding was skipped.
	Frames int
	// Skipped counts frames dropped on transient encoder errors.
	Skipped int
	// Err records a camera read failure. The session result is still
	// valid: identities recognized before the failure are kept, and
	// the caller takes the same path as for a manual stop.
	Err error
}

// Runner executes capture sessions. Construct one per session; the
// runner owns the device and closes it on every exit path.
type Runner struct {
	Device   camera.Device
	Encoder  Encoder
	Matcher  *matcher.Matcher
	Names    []string // registry names, indexed by registry index
	Interval time.Duration
	// OnFrame, when set, receives every processed frame. Called from
	// the session goroutine.
	OnFrame func(FrameEvent)
}

// Run processes frames until ctx is cancelled (manual stop) or the
// camera stops delivering frames. Both terminations return the
// accumulated recognized-identity set.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Device == nil || r.Encoder == nil || r.Matcher == nil {
		return nil, errors.New("capture runner missing device, encoder, or matcher")
	}
	defer func() {
		if err := r.Device.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing camera: %v\n", err)
		}
	}()

	session := matcher.NewSession()
	result := &Result{}

	for {
		frame, err := r.Device.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			// Camera failure terminates the session the same way a
			// manual stop does; the error is carried for reporting.
			result.Err = err
			break
		}

		result.Frames++
		r.processFrame(ctx, frame, session, result)

		select {
		case <-ctx.Done():
			result.Recognized = session.Names()
			return result, nil
		case <-time.After(r.Interval):
		}
	}

	result.Recognized = session.Names()
	return result, nil
}

func (r *Runner) processFrame(ctx context.Context, frame []byte, session *matcher.Session, result *Result) {
	encoded, err := r.Encoder.EncodeFaces(ctx, frame)
	if err != nil {
		// Transient encoder failure: drop the frame, keep the session.
		result.Skipped++
		return
	}

	event := FrameEvent{Seq: result.Frames}
	var boxes [][]float64

	for _, face := range encoded.Faces {
		box := FaceBox{BBox: face.BBox, Name: UnknownLabel}
		if idx, dist, ok := r.Matcher.MatchDistance(face.Encoding); ok {
			box.Name = r.Names[idx]
			box.Distance = dist
			box.Matched = true
			session.Add(box.Name)
		}
		event.Faces = append(event.Faces, box)
		boxes = append(boxes, face.BBox)
	}

	if r.OnFrame != nil {
		if annotated, err := annotateFrame(frame, boxes); err == nil {
			event.JPEG = annotated
		}
		r.OnFrame(event)
	}
}
