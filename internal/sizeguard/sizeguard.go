// Package sizeguard enforces the hard byte ceiling the publish server imposes
// on uploaded videos. The same check runs against the original file and again
// against the transcoded file, always on sizes freshly measured from disk.
package sizeguard

import "fmt"

// Verdict is the outcome of a ceiling check.
type Verdict struct {
	SizeBytes    int64
	CeilingBytes int64
	// ExcessBytes is how far over the ceiling the file is. Zero when the
	// file fits, including the exact-ceiling case.
	ExcessBytes int64
}

// Ok reports whether the file fits under the ceiling. A file exactly at the
// ceiling passes.
func (v Verdict) Ok() bool {
	return v.ExcessBytes == 0
}

// Check compares a measured file size against the ceiling.
func Check(sizeBytes, ceilingBytes int64) Verdict {
	verdict := Verdict{SizeBytes: sizeBytes, CeilingBytes: ceilingBytes}
	if ceilingBytes > 0 && sizeBytes > ceilingBytes {
		verdict.ExcessBytes = sizeBytes - ceilingBytes
	}
	return verdict
}

// Describe renders the verdict for logs and operator-facing messages.
func (v Verdict) Describe() string {
	if v.Ok() {
		return fmt.Sprintf("%s within %s ceiling", FormatBytes(v.SizeBytes), FormatBytes(v.CeilingBytes))
	}
	return fmt.Sprintf("%s exceeds %s ceiling by %s", FormatBytes(v.SizeBytes), FormatBytes(v.CeilingBytes), FormatBytes(v.ExcessBytes))
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	suffixes := []string{"KiB", "MiB", "GiB", "TiB"}
	index := -1
	for value >= unit && index < len(suffixes)-1 {
		value /= unit
		index++
	}
	return fmt.Sprintf("%.1f %s", value, suffixes[index])
}
