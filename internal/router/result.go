package router

import "github.com/telegate/telegate/internal/backend"

// Status is the terminal outcome of processing one update.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusBackendError Status = "backend_error"
	StatusUnsupported  Status = "unsupported_type"
	StatusEmptyContent Status = "empty_content"
)

// Result is what routing produces for one update: a reply to deliver and,
// for visual-similarity matches, a product carousel to attach.
type Result struct {
	Status        Status
	Reply         string
	Products      []backend.Product
	ExactMatch    bool
	LowConfidence bool
	Err           error
}

// Deliverable reports whether the result carries anything worth sending.
func (r Result) Deliverable() bool {
	return r.Reply != "" || len(r.Products) > 0
}

// Tier buckets a best-match similarity score. Tiers are ordered by three
// strictly descending thresholds; a score below the lowest threshold is
// TierNone.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierNone   Tier = "none"
)

// TierFor maps a similarity score onto a confidence tier.
func TierFor(score, high, medium, low float64) Tier {
	switch {
	case score >= high:
		return TierHigh
	case score >= medium:
		return TierMedium
	case score >= low:
		return TierLow
	default:
		return TierNone
	}
}
