package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a submission.
type Status string

const (
	StatusPending        Status = "pending"
	StatusCheckingSize   Status = "checking_original_size"
	StatusTranscoding    Status = "transcoding"
	StatusCheckingOutput Status = "checking_transcoded_size"
	StatusUploading      Status = "uploading"
	StatusSubmitting     Status = "submitting_metadata"
	StatusPublished      Status = "published"
	StatusRejected       Status = "rejected"
	StatusFailed         Status = "failed"
)

// UserStopReason is the error message set when a user explicitly stops a submission.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when submissions are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusCheckingSize,
	StatusTranscoding,
	StatusCheckingOutput,
	StatusUploading,
	StatusSubmitting,
	StatusPublished,
	StatusRejected,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusCheckingSize:   {},
	StatusTranscoding:    {},
	StatusCheckingOutput: {},
	StatusUploading:      {},
	StatusSubmitting:     {},
}

var terminalStatuses = map[Status]struct{}{
	StatusPublished: {},
	StatusRejected:  {},
	StatusFailed:    {},
}

// HealthSummary describes aggregated submission counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Published  int
	Rejected   int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// Submission represents a queued video submission persisted in SQLite.
type Submission struct {
	ID                 int64
	CorrelationID      string
	SourcePath         string
	Title              string
	Status             Status
	StagedFile         string
	VideoURL           string
	RecipeDraftJSON    string
	ErrorMessage       string
	OriginalSizeBytes  int64
	FinalSizeBytes     int64
	Passthrough        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProgressStage      string
	ProgressPercent    float64
	ProgressMessage    string
	ProgressBytesSent  int64
	ProgressTotalBytes int64
	LastHeartbeat      *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (s Submission) IsProcessing() bool {
	return IsProcessingStatus(s.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminalStatus reports whether a status ends the submission lifecycle.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsUserStopReason reports whether an error message represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage. ProgressMessage is set
// to message, ProgressPercent resets to 0, and ErrorMessage is cleared.
func (s *Submission) InitProgress(stage, message string) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = 0
	s.ProgressBytesSent = 0
	s.ProgressTotalBytes = 0
	s.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
func (s *Submission) SetProgress(stage, message string, percent float64) {
	s.ProgressStage = stage
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (s *Submission) SetProgressComplete(stage, message string) {
	s.SetProgress(stage, message, 100)
}

// SetFailed marks the submission as failed with the given error message.
func (s *Submission) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressPercent = 0
	s.ProgressMessage = message
	s.LastHeartbeat = nil
	s.ProgressStage = "Failed"
}

// SetRejected marks the submission as rejected by the size guard or server.
func (s *Submission) SetRejected(message string) {
	s.Status = StatusRejected
	s.ErrorMessage = message
	s.ProgressMessage = message
	s.LastHeartbeat = nil
	s.ProgressStage = "Rejected"
}
