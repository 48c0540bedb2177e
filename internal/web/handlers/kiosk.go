package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/capture"
	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/matcher"
	"github.com/kozaktomas/attendance-kiosk/internal/registry"
)

// Kiosk serves the attendance kiosk API. It is the single owner of the
// registry, matcher, attendance log, and camera, constructed once at
// startup and passed into every handler.
type Kiosk struct {
	config     *config.Config
	registry   *registry.Registry
	matcher    *matcher.Matcher
	encoder    capture.Encoder
	log        *attendance.Log
	openDevice func() (camera.Device, error)
	jobs       *JobManager
}

// NewKiosk creates the kiosk handler.
func NewKiosk(
	cfg *config.Config,
	reg *registry.Registry,
	m *matcher.Matcher,
	encoder capture.Encoder,
	attLog *attendance.Log,
	openDevice func() (camera.Device, error),
) *Kiosk {
	return &Kiosk{
		config:     cfg,
		registry:   reg,
		matcher:    m,
		encoder:    encoder,
		log:        attLog,
		openDevice: openDevice,
		jobs:       NewJobManager(),
	}
}

// startSessionRequest is the body of POST /sessions.
type startSessionRequest struct {
	Action string `json:"action"`
}

// framePayload is the data of a "frame" SSE event. JPEG marshals as
// base64.
type framePayload struct {
	Seq   int               `json:"seq"`
	Faces []capture.FaceBox `json:"faces"`
	JPEG  []byte            `json:"jpeg,omitempty"`
}

// actionLabel maps an API action to its localized sheet label.
func (k *Kiosk) actionLabel(action string) (string, bool) {
	switch action {
	case "clock_in":
		return k.config.Labels.Actions.ClockIn, true
	case "clock_out":
		return k.config.Labels.Actions.ClockOut, true
	default:
		return "", false
	}
}

// StartSession starts a capture session for a clock-in or clock-out.
func (k *Kiosk) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	label, ok := k.actionLabel(req.Action)
	if !ok {
		respondError(w, http.StatusBadRequest, "action must be clock_in or clock_out")
		return
	}

	job, err := k.jobs.CreateJob(uuid.New().String(), req.Action, label)
	if err != nil {
		if errors.Is(err, ErrSessionActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go k.runSession(job)

	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

// runSession drives one capture session in the background and writes the
// attendance rows when it ends.
func (k *Kiosk) runSession(job *CaptureJob) {
	ctx := job.BindContext(context.Background())

	device, err := k.openDevice()
	if err != nil {
		k.failJob(job, fmt.Errorf("failed to open camera: %w", err))
		return
	}

	runner := &capture.Runner{
		Device:   device,
		Encoder:  k.encoder,
		Matcher:  k.matcher,
		Names:    registryNames(k.registry),
		Interval: k.config.CaptureInterval(),
		OnFrame: func(e capture.FrameEvent) {
			job.SendEvent(JobEvent{
				Type: "frame",
				Data: framePayload{Seq: e.Seq, Faces: e.Faces, JPEG: e.JPEG},
			})
		},
	}

	job.SetStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "status", Data: job.Snapshot()})

	result, err := runner.Run(ctx)
	if err != nil {
		k.failJob(job, err)
		return
	}

	job.mu.Lock()
	job.Recognized = result.Recognized
	job.Frames = result.Frames
	job.Skipped = result.Skipped
	job.mu.Unlock()

	if result.Err != nil {
		// Camera failure ends the session like a manual stop; the
		// recognitions are kept, but the user must see that frames
		// stopped coming.
		log.Printf("capture session %s: %v", job.ID, result.Err)
		job.mu.Lock()
		job.Warning = k.config.Labels.UI.CameraError
		job.mu.Unlock()
	}

	if len(result.Recognized) == 0 {
		job.mu.Lock()
		job.Warning = joinWarnings(job.Warning, k.config.Labels.UI.Failure)
		job.mu.Unlock()
		job.SetStatus(JobStatusCompleted)
		job.SendEvent(JobEvent{Type: "completed", Message: k.config.Labels.UI.Failure, Data: job.Snapshot()})
		return
	}

	if _, err := k.log.Append(result.Recognized, job.ActionLabel); err != nil {
		// Recognitions are lost when the write fails; surface it.
		k.failJob(job, fmt.Errorf("failed to record attendance: %w", err))
		return
	}

	job.SetStatus(JobStatusCompleted)
	job.SendEvent(JobEvent{Type: "completed", Message: k.config.Labels.UI.Success, Data: job.Snapshot()})
}

func (k *Kiosk) failJob(job *CaptureJob, err error) {
	log.Printf("capture session %s failed: %v", job.ID, err)
	job.mu.Lock()
	job.Error = err.Error()
	job.mu.Unlock()
	job.SetStatus(JobStatusFailed)
	job.SendEvent(JobEvent{Type: "failed", Message: err.Error(), Data: job.Snapshot()})
}

// GetSession returns the status of a capture session.
func (k *Kiosk) GetSession(w http.ResponseWriter, r *http.Request) {
	job := k.jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// StopSession delivers the manual stop signal. The session completes
// normally with whatever it recognized so far.
func (k *Kiosk) StopSession(w http.ResponseWriter, r *http.Request) {
	job := k.jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

// Events streams session events (frames, status changes) over SSE.
func (k *Kiosk) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := k.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*CaptureJob).Snapshot()
		},
	)
}

// ListAttendance returns attendance rows, oldest first.
func (k *Kiosk) ListAttendance(w http.ResponseWriter, r *http.Request) {
	records, err := k.log.List()
	if err != nil {
		log.Printf("failed to list attendance: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance sheet")
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(records) {
			records = records[len(records)-limit:]
		}
	}

	if records == nil {
		records = []attendance.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// registryEntry is one row of the registry listing. Encodings stay
// server-side.
type registryEntry struct {
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
}

// ListRegistry returns the registered identities.
func (k *Kiosk) ListRegistry(w http.ResponseWriter, r *http.Request) {
	entries := make([]registryEntry, 0, k.registry.Len())
	for _, e := range k.registry.Entries() {
		entries = append(entries, registryEntry{Name: e.Name, ImagePath: e.ImagePath})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetLabels returns the localized UI strings for the kiosk page.
func (k *Kiosk) GetLabels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"title":     k.config.Labels.UI.Title,
		"prompt":    k.config.Labels.UI.Prompt,
		"clock_in":  k.config.Labels.Actions.ClockIn,
		"clock_out": k.config.Labels.Actions.ClockOut,
	})
}

func joinWarnings(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + " / " + next
}

func registryNames(reg *registry.Registry) []string {
	names := make([]string, reg.Len())
	for i := range names {
		names[i] = reg.NameAt(i)
	}
	return names
}
