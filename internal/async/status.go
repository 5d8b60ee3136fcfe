// Package async provides background rebuild tracking for wikindex.
package async

import (
	"sync"
	"time"
)

// RebuildStatus represents the overall rebuild state.
type RebuildStatus string

const (
	// StatusIdle indicates no rebuild has been started.
	StatusIdle RebuildStatus = "idle"
	// StatusRunning indicates a rebuild is in progress.
	StatusRunning RebuildStatus = "running"
	// StatusDone indicates the last rebuild finished.
	StatusDone RebuildStatus = "done"
	// StatusError indicates the last rebuild failed.
	StatusError RebuildStatus = "error"
)

// Stage represents the current phase of a rebuild.
type Stage string

const (
	// StageClearing truncates the index.
	StageClearing Stage = "clearing"
	// StageEnumerating walks the content source and fills the queue.
	StageEnumerating Stage = "enumerating"
	// StageDraining waits for the updater to index the queued entries.
	StageDraining Stage = "draining"
)

// Snapshot is an immutable copy of rebuild progress.
type Snapshot struct {
	Status              string  `json:"status"`
	Stage               string  `json:"stage,omitempty"`
	NamespacesTotal     int     `json:"namespaces_total"`
	NamespacesProcessed int     `json:"namespaces_processed"`
	EntriesQueued       int     `json:"entries_queued"`
	ProgressPct         float64 `json:"progress_pct"`
	ElapsedSeconds      int     `json:"elapsed_seconds"`
	ErrorMessage        string  `json:"error_message,omitempty"`
}

// Progress provides thread-safe tracking of rebuild progress.
type Progress struct {
	mu sync.RWMutex

	status              RebuildStatus
	stage               Stage
	namespacesTotal     int
	namespacesProcessed int
	entriesQueued       int
	startTime           time.Time
	errorMessage        string
}

// NewProgress creates an idle progress tracker.
func NewProgress() *Progress {
	return &Progress{status: StatusIdle}
}

// Start resets the tracker for a new rebuild.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusRunning
	p.stage = StageClearing
	p.namespacesTotal = 0
	p.namespacesProcessed = 0
	p.entriesQueued = 0
	p.errorMessage = ""
	p.startTime = time.Now()
}

// SetStage updates the current stage.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// SetNamespaces sets the number of namespaces to enumerate.
func (p *Progress) SetNamespaces(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.namespacesTotal = total
}

// NamespaceDone records one fully enumerated namespace.
func (p *Progress) NamespaceDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.namespacesProcessed++
}

// AddQueued adds n to the number of enqueued entries.
func (p *Progress) AddQueued(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entriesQueued += n
}

// SetError marks the rebuild as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetDone marks the rebuild as finished.
func (p *Progress) SetDone() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusDone
	p.stage = ""
}

// IsRunning returns true while a rebuild is in progress.
func (p *Progress) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusRunning
}

// Snapshot returns an immutable copy of the current progress state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var progressPct float64
	if p.namespacesTotal > 0 {
		progressPct = float64(p.namespacesProcessed) / float64(p.namespacesTotal) * 100.0
	}

	var elapsed int
	if !p.startTime.IsZero() {
		elapsed = int(time.Since(p.startTime).Seconds())
	}

	return Snapshot{
		Status:              string(p.status),
		Stage:               string(p.stage),
		NamespacesTotal:     p.namespacesTotal,
		NamespacesProcessed: p.namespacesProcessed,
		EntriesQueued:       p.entriesQueued,
		ProgressPct:         progressPct,
		ElapsedSeconds:      elapsed,
		ErrorMessage:        p.errorMessage,
	}
}
