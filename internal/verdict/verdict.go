// Package verdict holds validation findings and the rules that fold them into
// a status, a confidence score and a compliance score.
package verdict

import (
	"math"
	"sort"
)

// Severity orders findings. Critical > Error > Warning.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityError    Severity = "ERROR"
	SeverityWarning  Severity = "WARNING"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityWarning:
		return true
	}
	return false
}

// order returns a sort key (lower = more severe).
func (s Severity) order() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityError:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// Status is the outcome of one validation pass.
type Status string

const (
	StatusValid          Status = "VALID"
	StatusRequiresReview Status = "REQUIRES_REVIEW"
	StatusRejected       Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusValid, StatusRequiresReview, StatusRejected:
		return true
	}
	return false
}

// MaxErrorsBeforeReject is the number of Error findings tolerated before a
// layout is rejected.
const MaxErrorsBeforeReject = 3

// ValidationError is a single finding. Location and Suggestion are optional.
type ValidationError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Location   string   `json:"location,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Result is the immutable output of a validation pass. Errors holds Critical
// and Error findings; Warnings holds the rest.
type Result struct {
	Status              Status            `json:"status"`
	Errors              []ValidationError `json:"errors"`
	Warnings            []ValidationError `json:"warnings"`
	Confidence          float64           `json:"confidence"`
	ComplianceScore     float64           `json:"compliance_score"`
	RequiresHumanReview bool              `json:"requires_human_review"`
}

// Counts tallies findings by severity.
type Counts struct {
	Critical int
	Error    int
	Warning  int
}

// Count tallies a list of findings.
func Count(findings []ValidationError) Counts {
	var c Counts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityError:
			c.Error++
		case SeverityWarning:
			c.Warning++
		}
	}
	return c
}

// Counts tallies the findings held by r.
func (r Result) Counts() Counts {
	c := Count(r.Errors)
	w := Count(r.Warnings)
	c.Critical += w.Critical
	c.Error += w.Error
	c.Warning += w.Warning
	return c
}

// ErrorCount is the number of Critical and Error findings.
func (r Result) ErrorCount() int { return len(r.Errors) }

// HasCode reports whether any finding carries code.
func (r Result) HasCode(code string) bool {
	for _, list := range [][]ValidationError{r.Errors, r.Warnings} {
		for _, f := range list {
			if f.Code == code {
				return true
			}
		}
	}
	return false
}

// DeriveStatus maps severity counts to a status. A clean layout still
// requires review; StatusValid is never derived.
func DeriveStatus(c Counts) Status {
	switch {
	case c.Critical > 0:
		return StatusRejected
	case c.Error > MaxErrorsBeforeReject:
		return StatusRejected
	default:
		return StatusRequiresReview
	}
}

// ComputeConfidence lowers the generation-time confidence by 0.3 per
// critical, 0.1 per error and 0.05 per warning. The result is clamped to
// [0,1] whatever the generation confidence was.
func ComputeConfidence(generation float64, c Counts) float64 {
	v := generation - 0.3*float64(c.Critical) - 0.1*float64(c.Error) - 0.05*float64(c.Warning)
	return round(math.Min(1, math.Max(0, v)))
}

// ComputeCompliance returns 1 - (3c + 2e + w)/10, floored at 0.
func ComputeCompliance(c Counts) float64 {
	v := 1 - float64(3*c.Critical+2*c.Error+c.Warning)/10
	return round(math.Max(0, v))
}

// round trims float noise so equal inputs always encode identically.
func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// Build assembles a Result from raw findings. Findings are split by
// severity and sorted deterministically.
func Build(findings []ValidationError, generationConfidence float64) Result {
	var errs, warns []ValidationError
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			warns = append(warns, f)
		} else {
			errs = append(errs, f)
		}
	}
	SortFindings(errs)
	SortFindings(warns)

	c := Count(findings)
	status := DeriveStatus(c)
	if errs == nil {
		errs = []ValidationError{}
	}
	if warns == nil {
		warns = []ValidationError{}
	}
	return Result{
		Status:              status,
		Errors:              errs,
		Warnings:            warns,
		Confidence:          ComputeConfidence(generationConfidence, c),
		ComplianceScore:     ComputeCompliance(c),
		RequiresHumanReview: status != StatusRejected,
	}
}

// SortFindings orders findings by severity; ties keep their original
// (layer) order.
func SortFindings(findings []ValidationError) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.order() < findings[j].Severity.order()
	})
}
