package types

import (
	"errors"
	"fmt"
	"time"
)

// RubricKeys is the fixed set of categories every feedback record scores.
var RubricKeys = []string{
	"understanding",
	"implementation",
	"presentation",
	"creativity",
	"overall",
}

const (
	RubricScoreMin = 0
	RubricScoreMax = 10
)

// ErrInvalidRubricScores marks a rubric-scores map that does not carry
// exactly the fixed keys with in-range values.
var ErrInvalidRubricScores = errors.New("invalid rubric scores")

// RubricScores maps each rubric category to an integer score in [0,10].
type RubricScores map[string]int

// Validate checks that the map carries exactly the fixed rubric keys and
// that every score is within the closed [0,10] range. Out-of-range scores
// are rejected, never clamped.
func (s RubricScores) Validate() error {
	if len(s) != len(RubricKeys) {
		return fmt.Errorf("%w: must contain exactly the keys %v", ErrInvalidRubricScores, RubricKeys)
	}
	for _, key := range RubricKeys {
		score, ok := s[key]
		if !ok {
			return fmt.Errorf("%w: missing key %q", ErrInvalidRubricScores, key)
		}
		if score < RubricScoreMin || score > RubricScoreMax {
			return fmt.Errorf("%w: %q must be between %d and %d", ErrInvalidRubricScores, key, RubricScoreMin, RubricScoreMax)
		}
	}
	return nil
}

// Feedback is one rubric-scored record an instructor submitted for a
// student on a project. Records are immutable once created.
type Feedback struct {
	ID           int          `json:"id" db:"id"`
	StudentID    int          `json:"student_id" db:"student_id"`
	InstructorID int          `json:"instructor_id" db:"instructor_id"`
	ProjectID    int          `json:"project_id" db:"project_id"`

	// ProjectTitle is a snapshot captured at creation time; it survives
	// later changes to (or deletion of) the project record.
	ProjectTitle string `json:"project_title" db:"project_title"`

	RubricScores RubricScores `json:"rubric_scores" db:"rubric_scores"`
	Comments     string       `json:"comments" db:"comments"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`

	// Resolved display fields, populated by joins on read paths.
	StudentName        string `json:"student_name,omitempty"`
	InstructorName     string `json:"instructor_name,omitempty"`
	ProjectDescription string `json:"project_description,omitempty"`
}

// FeedbackFilter narrows the instructor-only feedback listing. ProjectID
// takes precedence over ProjectTitle when both are set.
type FeedbackFilter struct {
	StudentID    int
	ProjectID    int
	ProjectTitle string
}
