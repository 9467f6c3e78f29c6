package audiogen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/limits"
)

// ErrNoService is returned when generation is requested without a service.
var ErrNoService = errors.New("no generation service configured")

// defaultTimeout bounds a single generation job.
const defaultTimeout = 60 * time.Second

// Result is one finished generation job. Either Payload or Err is set.
type Result struct {
	JobID   string
	Prompt  string
	Payload []byte
	Err     error
}

// Manager runs generation jobs in the background and queues their results
// for the frame loop to drain.
type Manager struct {
	mu      sync.Mutex
	service Service
	timeout time.Duration
	pending map[string]context.CancelFunc
	done    []Result
}

// NewManager creates a manager using the given service. A nil service is
// allowed; Begin then fails until one is installed.
func NewManager(service Service) *Manager {
	return &Manager{
		service: service,
		timeout: defaultTimeout,
		pending: make(map[string]context.CancelFunc),
	}
}

// SetService replaces the generation backend.
func (m *Manager) SetService(service Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.service = service
}

// SetTimeout changes the per-job deadline.
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timeout > 0 {
		m.timeout = timeout
	}
}

// Begin validates the prompt and starts a background generation job,
// returning the job's id. The result, success or failure, arrives through
// Drain.
func (m *Manager) Begin(prompt string) (string, error) {
	if err := limits.ValidatePrompt(prompt); err != nil {
		return "", err
	}

	m.mu.Lock()
	service := m.service
	timeout := m.timeout
	m.mu.Unlock()
	if service == nil {
		return "", ErrNoService
	}

	jobID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	m.mu.Lock()
	m.pending[jobID] = cancel
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Begin",
		"job_id":   jobID,
		"prompt":   prompt,
	}).Info("Audio generation started")

	go m.run(ctx, cancel, service, jobID, prompt)
	return jobID, nil
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, service Service, jobID, prompt string) {
	defer cancel()

	payload, err := service.Generate(ctx, prompt)
	if err == nil {
		err = limits.ValidateClip(payload)
	}
	if err != nil {
		payload = nil
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"job_id":   jobID,
			"error":    err.Error(),
		}).Warn("Audio generation failed")
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "run",
			"job_id":   jobID,
			"bytes":    len(payload),
		}).Info("Audio generation completed")
	}

	m.mu.Lock()
	delete(m.pending, jobID)
	m.done = append(m.done, Result{JobID: jobID, Prompt: prompt, Payload: payload, Err: err})
	m.mu.Unlock()
}

// Drain returns all finished jobs and clears the queue. The shell calls it
// once per iteration and applies the results synchronously.
func (m *Manager) Drain() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.done) == 0 {
		return nil
	}
	drained := m.done
	m.done = nil
	return drained
}

// Busy reports whether any generation job is still running.
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// PendingCount returns the number of running jobs.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// CancelAll aborts every running job. The jobs still deliver results, each
// carrying a cancellation error.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.pending))
	for _, cancel := range m.pending {
		cancels = append(cancels, cancel)
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
