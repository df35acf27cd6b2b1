// Package metrics keeps in-process counters for submissions, uploads,
// admin activity and HTTP traffic, and renders them in the Prometheus text
// exposition format.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds application metrics. All methods are safe on a nil receiver
// so services can run without a registry in tests.
type Metrics struct {
	mu sync.RWMutex

	// Submission metrics
	submissionsTotal       int64
	submissionFailures     map[string]int64
	imagesUploadedTotal    int64
	imageBytesTotal        int64
	uploadErrorsTotal      int64
	submitDurationTotal    time.Duration
	broadcastsTotal        int64
	cleanupDeletesTotal    int64
	cleanupDeleteErrsTotal int64

	// Admin metrics
	adminRegistrationsTotal int64
	adminConflictsTotal     int64
	loginSuccessTotal       int64
	loginFailuresTotal      int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64

	startedAt time.Time
}

// New creates an empty registry.
func New() *Metrics {
	return &Metrics{
		submissionFailures: make(map[string]int64),
		startedAt:          time.Now(),
	}
}

// RecordSubmission records a persisted submission with its image count,
// total payload size and end-to-end duration.
func (m *Metrics) RecordSubmission(images int, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissionsTotal++
	m.imagesUploadedTotal += int64(images)
	m.imageBytesTotal += bytes
	m.submitDurationTotal += duration
}

// RecordSubmissionFailure counts a rejected or failed submission by kind.
func (m *Metrics) RecordSubmissionFailure(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissionFailures[kind]++
}

// RecordUploadError counts one failed media upload.
func (m *Metrics) RecordUploadError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordBroadcast counts one fan-out event.
func (m *Metrics) RecordBroadcast() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastsTotal++
}

// RecordCleanup counts compensating deletes after a failed batch.
func (m *Metrics) RecordCleanup(deleted, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupDeletesTotal += int64(deleted)
	m.cleanupDeleteErrsTotal += int64(failed)
}

// RecordAdminRegistration records a registration attempt outcome.
func (m *Metrics) RecordAdminRegistration(conflict bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conflict {
		m.adminConflictsTotal++
		return
	}
	m.adminRegistrationsTotal++
}

// RecordLogin records an admin login attempt
func (m *Metrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	failures := make(map[string]int64, len(m.submissionFailures))
	for k, v := range m.submissionFailures {
		failures[k] = v
	}

	return Snapshot{
		SubmissionsTotal:        m.submissionsTotal,
		SubmissionFailures:      failures,
		SubmitAvgDurationMs:     avgDuration(m.submitDurationTotal, m.submissionsTotal),
		ImagesUploadedTotal:     m.imagesUploadedTotal,
		ImageBytesTotal:         m.imageBytesTotal,
		UploadErrorsTotal:       m.uploadErrorsTotal,
		BroadcastsTotal:         m.broadcastsTotal,
		CleanupDeletesTotal:     m.cleanupDeletesTotal,
		CleanupDeleteErrsTotal:  m.cleanupDeleteErrsTotal,
		AdminRegistrationsTotal: m.adminRegistrationsTotal,
		AdminConflictsTotal:     m.adminConflictsTotal,
		LoginSuccessTotal:       m.loginSuccessTotal,
		LoginFailuresTotal:      m.loginFailuresTotal,
		RequestsTotal:           m.requestsTotal,
		RequestErrors5xx:        m.requestErrors5xx,
		RequestErrors4xx:        m.requestErrors4xx,
		UptimeSeconds:           time.Since(m.startedAt).Seconds(),
	}
}

// Snapshot represents a point-in-time snapshot of metrics
type Snapshot struct {
	SubmissionsTotal       int64            `json:"submissions_total"`
	SubmissionFailures     map[string]int64 `json:"submission_failures"`
	SubmitAvgDurationMs    float64          `json:"submit_avg_duration_ms"`
	ImagesUploadedTotal    int64            `json:"images_uploaded_total"`
	ImageBytesTotal        int64            `json:"image_bytes_total"`
	UploadErrorsTotal      int64            `json:"upload_errors_total"`
	BroadcastsTotal        int64            `json:"broadcasts_total"`
	CleanupDeletesTotal    int64            `json:"cleanup_deletes_total"`
	CleanupDeleteErrsTotal int64            `json:"cleanup_delete_errors_total"`

	AdminRegistrationsTotal int64 `json:"admin_registrations_total"`
	AdminConflictsTotal     int64 `json:"admin_conflicts_total"`
	LoginSuccessTotal       int64 `json:"login_success_total"`
	LoginFailuresTotal      int64 `json:"login_failures_total"`

	RequestsTotal    int64   `json:"requests_total"`
	RequestErrors5xx int64   `json:"request_errors_5xx"`
	RequestErrors4xx int64   `json:"request_errors_4xx"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
