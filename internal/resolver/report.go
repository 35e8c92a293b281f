package resolver

import (
	"time"

	"github.com/google/uuid"
)

// ScanReport is the explicit result of one scan, returned by value and
// threaded through subsequent pipeline stages.
type ScanReport struct {
	ID        string        `json:"scan_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	DockerfilesScanned int `json:"dockerfiles_scanned"`
	ImagesScanned      int `json:"images_scanned"`
	UpdatesFound       int `json:"updates_found"`
	UpdatesApplied     int `json:"updates_applied"`
	Failures           int `json:"failures"`

	Candidates []UpdateCandidate `json:"candidates,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
}

// NewScanReport starts an empty report with a fresh scan ID.
func NewScanReport() ScanReport {
	return ScanReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// UpdatesNeeded reports whether the scan found at least one candidate.
func (r ScanReport) UpdatesNeeded() bool {
	return r.UpdatesFound > 0
}

// Failed reports whether the scan as a whole should exit non-zero: every
// scanned image failed, or no Dockerfile could be read at all. Individual
// image failures never fail an otherwise productive scan.
func (r ScanReport) Failed() bool {
	if r.DockerfilesScanned == 0 && len(r.Errors) > 0 {
		return true
	}
	return r.ImagesScanned > 0 && r.Failures >= r.ImagesScanned
}
