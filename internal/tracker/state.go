package tracker

import "fmt"

// Phase is the coarse state of a capture session.
type Phase int

const (
	// Searching: no candidate, or the candidate failed the quality gate.
	Searching Phase = iota
	// CandidateUnstable: a gate-passing candidate moved or changed size.
	CandidateUnstable
	// Locking: consecutive stable frames are being counted.
	Locking
	// Locked: the lock threshold was reached. Terminal until reset.
	Locked
	// TimedOut: nothing acceptable was seen for the timeout. Terminal until reset.
	TimedOut
)

var phaseNames = [...]string{
	Searching:         "searching",
	CandidateUnstable: "candidate_unstable",
	Locking:           "locking",
	Locked:            "locked",
	TimedOut:          "timed_out",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText encodes the phase by name for JSON and YAML output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Terminal reports whether the phase ends frame consumption.
func (p Phase) Terminal() bool {
	return p == Locked || p == TimedOut
}

// Sample is the reduced form of the last gate-passing candidate.
type Sample struct {
	CX   float64 `json:"cx"`
	CY   float64 `json:"cy"`
	Area float64 `json:"area"`
}

// State is the complete tracker state of one session. The zero value is a
// fresh session in Searching with no sample.
type State struct {
	Phase Phase `json:"phase"`

	// Count is the number of consecutive stable frames. It is non-zero only
	// in Locking and Locked.
	Count int `json:"count"`

	Sample    Sample `json:"sample"`
	HasSample bool   `json:"has_sample"`
}

func (s State) String() string {
	if s.Phase == Locking {
		return fmt.Sprintf("locking(%d)", s.Count)
	}
	return s.Phase.String()
}
