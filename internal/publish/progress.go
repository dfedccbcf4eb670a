package publish

// Phase identifies one of the three user-visible stages of a publish run.
type Phase string

const (
	PhaseCompressing Phase = "compressing"
	PhaseUploading   Phase = "uploading"
	PhaseSubmitting  Phase = "submitting"
)

// ProgressEvent reports publish progress. Fraction is monotonic
// non-decreasing within a phase and reaches exactly one 1.0 emission when the
// phase succeeds. BytesSent and TotalBytes are populated for the uploading
// phase only.
type ProgressEvent struct {
	Phase      Phase
	Fraction   float64
	Message    string
	BytesSent  int64
	TotalBytes int64
}

// Outcome is delivered to the completion callback exactly once per run.
type Outcome struct {
	SubmissionID int64
	Status       string
	VideoURL     string
	Err          error
}
