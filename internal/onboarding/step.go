// Package onboarding drives a member from first contact to a completed
// profile: verify, then profile details, then alliance selection.
package onboarding

type Step string

const (
	StepNone     Step = "none"
	StepProfile  Step = "profile"
	StepAlliance Step = "alliance"
	StepComplete Step = "complete"
)

// ParseStep reads the stored column. Absent and unknown values mean not started.
func ParseStep(value string) Step {
	switch Step(value) {
	case StepProfile, StepAlliance, StepComplete:
		return Step(value)
	default:
		return StepNone
	}
}

// Stored is the column value; StepNone is stored as NULL.
func (s Step) Stored() string {
	if s == StepNone {
		return ""
	}
	return string(s)
}

func (s Step) order() int {
	switch s {
	case StepProfile:
		return 1
	case StepAlliance:
		return 2
	case StepComplete:
		return 3
	default:
		return 0
	}
}

// Before reports whether s comes earlier in the sequence than other.
func (s Step) Before(other Step) bool {
	return s.order() < other.order()
}
