package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
)

func createKioskForTest(t *testing.T, device camera.Device, enc *fakeEncoder) *Kiosk {
	t.Helper()
	cfg := testConfig()
	reg := testRegistry()
	if enc == nil {
		enc = &fakeEncoder{}
	}
	openDevice := func() (camera.Device, error) { return device, nil }
	if device == nil {
		openDevice = func() (camera.Device, error) { return &fakeDevice{}, nil }
	}
	return NewKiosk(cfg, reg, testMatcher(reg), enc, testAttendanceLog(t), openDevice)
}

// waitForJob polls the job until it leaves the pending/running states.
func waitForJob(t *testing.T, k *Kiosk, id string) *CaptureJob {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		job := k.jobs.GetJob(id)
		if job == nil {
			t.Fatalf("job %s disappeared", id)
		}
		if status := job.GetStatus(); status != JobStatusPending && status != JobStatusRunning {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("job %s did not finish", id)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartSession_InvalidJSON(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{invalid`))
	recorder := httptest.NewRecorder()

	kiosk.StartSession(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid request body")
}

func TestStartSession_UnknownAction(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"lunch"}`))
	recorder := httptest.NewRecorder()

	kiosk.StartSession(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "action must be clock_in or clock_out")
}

func TestStartSession_RecognizesAndRecords(t *testing.T) {
	device := &fakeDevice{frames: [][]byte{[]byte("frame-empty"), []byte("frame-match")}}
	enc := &fakeEncoder{results: map[string]*faceenc.Result{
		"frame-match": {
			FacesCount: 1,
			Faces:      []faceenc.Face{{Dim: 3, Encoding: faceenc.Encoding{10, 0, 0}}},
		},
	}}
	kiosk := createKioskForTest(t, device, enc)

	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_in"}`))
	recorder := httptest.NewRecorder()

	kiosk.StartSession(recorder, req)

	assertStatusCode(t, recorder, http.StatusAccepted)
	assertContentType(t, recorder, "application/json")

	var snapshot CaptureJobView
	parseJSONResponse(t, recorder, &snapshot)
	if snapshot.ID == "" {
		t.Fatal("expected non-empty session id")
	}
	if snapshot.Action != "clock_in" {
		t.Errorf("expected action 'clock_in', got '%s'", snapshot.Action)
	}

	job := waitForJob(t, kiosk, snapshot.ID)
	if status := job.GetStatus(); status != JobStatusCompleted {
		t.Fatalf("expected status completed, got %s", status)
	}

	view := job.Snapshot()
	if len(view.Recognized) != 1 || view.Recognized[0] != "Employee1" {
		t.Errorf("expected recognized [Employee1], got %v", view.Recognized)
	}
	if !device.closed {
		t.Error("expected device to be closed after the session")
	}

	records, err := kiosk.log.List()
	if err != nil {
		t.Fatalf("failed to list attendance: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 attendance record, got %d", len(records))
	}
	if records[0].Name != "Employee1" || records[0].Action != "出勤" {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestStartSession_NoRecognition_WarnsWithoutRecord(t *testing.T) {
	device := &fakeDevice{frames: [][]byte{[]byte("frame-empty")}}
	kiosk := createKioskForTest(t, device, nil)

	req := httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_out"}`))
	recorder := httptest.NewRecorder()

	kiosk.StartSession(recorder, req)
	assertStatusCode(t, recorder, http.StatusAccepted)

	var snapshot CaptureJobView
	parseJSONResponse(t, recorder, &snapshot)

	job := waitForJob(t, kiosk, snapshot.ID)
	view := job.Snapshot()
	if view.Status != JobStatusCompleted {
		t.Fatalf("expected status completed, got %s", view.Status)
	}
	if !strings.Contains(view.Warning, kiosk.config.Labels.UI.Failure) {
		t.Errorf("expected warning containing '%s', got '%s'", kiosk.config.Labels.UI.Failure, view.Warning)
	}

	records, err := kiosk.log.List()
	if err != nil {
		t.Fatalf("failed to list attendance: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no attendance records, got %d", len(records))
	}
}

func TestStartSession_CameraFailureWarnsButKeepsRecognitions(t *testing.T) {
	// The device dies after the matching frame. The session must still
	// record the recognition, and the camera failure must reach the
	// kiosk page as a warning, not stay buried in the server log.
	device := &fakeDevice{frames: [][]byte{[]byte("frame-match")}}
	enc := &fakeEncoder{results: map[string]*faceenc.Result{
		"frame-match": {
			FacesCount: 1,
			Faces:      []faceenc.Face{{Dim: 3, Encoding: faceenc.Encoding{10, 0, 0}}},
		},
	}}
	kiosk := createKioskForTest(t, device, enc)

	recorder := httptest.NewRecorder()
	kiosk.StartSession(recorder, httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_in"}`)))
	assertStatusCode(t, recorder, http.StatusAccepted)

	var snapshot CaptureJobView
	parseJSONResponse(t, recorder, &snapshot)

	job := waitForJob(t, kiosk, snapshot.ID)
	view := job.Snapshot()
	if view.Status != JobStatusCompleted {
		t.Fatalf("expected status completed, got %s", view.Status)
	}
	if view.Warning != kiosk.config.Labels.UI.CameraError {
		t.Errorf("expected warning '%s', got '%s'", kiosk.config.Labels.UI.CameraError, view.Warning)
	}
	if len(view.Recognized) != 1 || view.Recognized[0] != "Employee1" {
		t.Errorf("expected recognized [Employee1], got %v", view.Recognized)
	}

	records, err := kiosk.log.List()
	if err != nil {
		t.Fatalf("failed to list attendance: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Employee1" {
		t.Fatalf("expected the recognition to be recorded, got %+v", records)
	}
}

func TestStartSession_SecondSessionConflicts(t *testing.T) {
	// A device that never produces a frame keeps the first session
	// running until it is stopped.
	kiosk := createKioskForTest(t, &blockingDevice{}, nil)

	first := httptest.NewRecorder()
	kiosk.StartSession(first, httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_in"}`)))
	assertStatusCode(t, first, http.StatusAccepted)

	var snapshot CaptureJobView
	parseJSONResponse(t, first, &snapshot)

	second := httptest.NewRecorder()
	kiosk.StartSession(second, httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_in"}`)))
	assertStatusCode(t, second, http.StatusConflict)

	// Stop the first session so the goroutine exits.
	stop := httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/sessions/"+snapshot.ID, nil),
		map[string]string{"id": snapshot.ID})
	kiosk.StopSession(stop, req)
	assertStatusCode(t, stop, http.StatusAccepted)

	waitForJob(t, kiosk, snapshot.ID)
}

func TestStartSession_CameraOpenFailure(t *testing.T) {
	cfg := testConfig()
	reg := testRegistry()
	kiosk := NewKiosk(cfg, reg, testMatcher(reg), &fakeEncoder{}, testAttendanceLog(t),
		func() (camera.Device, error) { return nil, camera.ErrFrameRead })

	recorder := httptest.NewRecorder()
	kiosk.StartSession(recorder, httptest.NewRequest("POST", "/api/v1/sessions", bytes.NewBufferString(`{"action":"clock_in"}`)))
	assertStatusCode(t, recorder, http.StatusAccepted)

	var snapshot CaptureJobView
	parseJSONResponse(t, recorder, &snapshot)

	job := waitForJob(t, kiosk, snapshot.ID)
	view := job.Snapshot()
	if view.Status != JobStatusFailed {
		t.Fatalf("expected status failed, got %s", view.Status)
	}
	if view.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/sessions/nope", nil),
		map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()

	kiosk.GetSession(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "session not found")
}

func TestStopSession_NotFound(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/sessions/nope", nil),
		map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()

	kiosk.StopSession(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestListAttendance_Empty(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	recorder := httptest.NewRecorder()
	kiosk.ListAttendance(recorder, httptest.NewRequest("GET", "/api/v1/attendance", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Records []attendance.Record `json:"records"`
		Count   int                 `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Count != 0 || len(result.Records) != 0 {
		t.Errorf("expected empty attendance list, got %+v", result)
	}
}

func TestListAttendance_Limit(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)
	for _, name := range []string{"A", "B", "C"} {
		if _, err := kiosk.log.Append([]string{name}, "出勤"); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	recorder := httptest.NewRecorder()
	kiosk.ListAttendance(recorder, httptest.NewRequest("GET", "/api/v1/attendance?limit=2", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Records []attendance.Record `json:"records"`
		Count   int                 `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Count != 2 {
		t.Fatalf("expected 2 records, got %d", result.Count)
	}
	if result.Records[0].Name != "B" || result.Records[1].Name != "C" {
		t.Errorf("expected the last two records, got %+v", result.Records)
	}
}

func TestListRegistry(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	recorder := httptest.NewRecorder()
	kiosk.ListRegistry(recorder, httptest.NewRequest("GET", "/api/v1/registry", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result struct {
		Entries []struct {
			Name      string `json:"name"`
			ImagePath string `json:"image_path"`
		} `json:"entries"`
		Count int `json:"count"`
	}
	parseJSONResponse(t, recorder, &result)
	if result.Count != 1 || result.Entries[0].Name != "Employee1" {
		t.Errorf("unexpected registry listing: %+v", result)
	}
}

func TestGetLabels(t *testing.T) {
	kiosk := createKioskForTest(t, nil, nil)

	recorder := httptest.NewRecorder()
	kiosk.GetLabels(recorder, httptest.NewRequest("GET", "/api/v1/labels", nil))

	assertStatusCode(t, recorder, http.StatusOK)

	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["clock_in"] != "出勤" || result["clock_out"] != "退勤" {
		t.Errorf("unexpected labels: %v", result)
	}
}
