package handlers

import (
	"context"
	"errors"
	"sync"
	"time"
)

// eventChannelBuffer is the buffer size for job event channels.
const eventChannelBuffer = 100

// JobStatus represents the status of a capture session job.
type JobStatus string

// JobStatus constants define the lifecycle states of a capture session.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobEvent is one event emitted by a capture session.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CaptureJob represents one capture session started from the kiosk GUI.
type CaptureJob struct {
	EventBroadcaster

	ID          string     `json:"id"`
	Action      string     `json:"action"`       // "clock_in" or "clock_out"
	ActionLabel string     `json:"action_label"` // localized label written to the sheet
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Recognized  []string   `json:"recognized,omitempty"`
	Frames      int        `json:"frames"`
	Skipped     int        `json:"skipped,omitempty"`
	Warning     string     `json:"warning,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *CaptureJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStatus transitions the job and stamps completion time on terminal
// states.
func (j *CaptureJob) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		now := time.Now()
		j.CompletedAt = &now
	}
}

// Cancel stops the capture session. This is the kiosk's manual stop
// signal; the session still completes normally with what it recognized.
func (j *CaptureJob) Cancel() {
	j.EventBroadcaster.Cancel()
}

// CaptureJobView is a race-free copy of a job for JSON responses.
type CaptureJobView struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	ActionLabel string     `json:"action_label"`
	Status      JobStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Recognized  []string   `json:"recognized,omitempty"`
	Frames      int        `json:"frames"`
	Skipped     int        `json:"skipped,omitempty"`
	Warning     string     `json:"warning,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot copies the job state under the lock.
func (j *CaptureJob) Snapshot() CaptureJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	view := CaptureJobView{
		ID:          j.ID,
		Action:      j.Action,
		ActionLabel: j.ActionLabel,
		Status:      j.Status,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Frames:      j.Frames,
		Skipped:     j.Skipped,
		Warning:     j.Warning,
		Error:       j.Error,
	}
	view.Recognized = append(view.Recognized, j.Recognized...)
	return view
}

// EventBroadcaster provides listener management, event broadcasting, and
// cancellation for capture jobs.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// BindContext derives a cancellable context the capture loop observes.
func (b *EventBroadcaster) BindContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return ctx
}

// Cancel cancels the bound context.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// SSEJob is the interface required by streamSSEEvents.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// ErrSessionActive means a capture session is already running. The kiosk
// has one camera, so sessions are serialized.
var ErrSessionActive = errors.New("a capture session is already running")

// JobManager manages capture session jobs. At most one job runs at a
// time.
type JobManager struct {
	jobs   map[string]*CaptureJob
	active string
	mu     sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*CaptureJob),
	}
}

// CreateJob registers a new pending capture job. Fails when another job
// is still running.
func (m *JobManager) CreateJob(id, action, actionLabel string) (*CaptureJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" {
		if job, ok := m.jobs[m.active]; ok {
			status := job.GetStatus()
			if status == JobStatusPending || status == JobStatusRunning {
				return nil, ErrSessionActive
			}
		}
	}

	job := &CaptureJob{
		ID:          id,
		Action:      action,
		ActionLabel: actionLabel,
		Status:      JobStatusPending,
		StartedAt:   time.Now(),
	}
	m.jobs[id] = job
	m.active = id
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *CaptureJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}
