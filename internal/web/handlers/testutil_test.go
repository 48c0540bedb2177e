package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
	"github.com/kozaktomas/attendance-kiosk/internal/matcher"
	"github.com/kozaktomas/attendance-kiosk/internal/registry"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Camera: config.CameraConfig{IntervalMS: 1},
		Match:  config.MatchConfig{Tolerance: 0.6, Policy: "first"},
		Labels: config.LabelsConfig{
			Actions: config.ActionLabels{ClockIn: "出勤", ClockOut: "退勤"},
			UI: config.UILabels{
				Title:       "勤怠管理システム",
				Prompt:      "カメラを見てください",
				Success:     "記録しました",
				Failure:     "認識できませんでした",
				CameraError: "カメラエラー",
			},
		},
	}
}

// testRegistry returns a registry with a single known face far from the
// origin, so a zero probe never matches and an equal probe always does.
func testRegistry() *registry.Registry {
	return registry.New([]registry.RegisteredFace{
		{Name: "Employee1", ImagePath: "faces/employee1.jpg", Encoding: faceenc.Encoding{10, 0, 0}},
	})
}

func testMatcher(reg *registry.Registry) *matcher.Matcher {
	return matcher.New(reg.Encodings(), 0.6, matcher.PolicyFirstMatch)
}

func testAttendanceLog(t *testing.T) *attendance.Log {
	t.Helper()
	return attendance.NewLog(filepath.Join(t.TempDir(), "kintai.xlsx"), "attendance")
}

// fakeDevice serves canned frames and then reports a read failure,
// which ends the capture session.
type fakeDevice struct {
	frames [][]byte
	pos    int
	closed bool
}

func (d *fakeDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.frames) {
		return nil, camera.ErrFrameRead
	}
	frame := d.frames[d.pos]
	d.pos++
	return frame, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

// blockingDevice never yields a frame; sessions using it run until
// they are stopped.
type blockingDevice struct{}

func (d *blockingDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *blockingDevice) Close() error { return nil }

// fakeEncoder maps frame content to canned encoder results.
type fakeEncoder struct {
	results map[string]*faceenc.Result
}

func (e *fakeEncoder) EncodeFaces(ctx context.Context, imageData []byte) (*faceenc.Result, error) {
	if r, ok := e.results[string(imageData)]; ok {
		return r, nil
	}
	return &faceenc.Result{FacesCount: 0, Faces: []faceenc.Face{}}, nil
}

func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
