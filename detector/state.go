package detector

import "fmt"

// Stage is where a single Detect call is in the pipeline.
type Stage int

const (
	// StageIdle is a call that has not reached the detector yet.
	StageIdle Stage = iota
	// StageDetectorRunning is a call inside the detector model.
	StageDetectorRunning
	// StageNMSRunning is a call inside the suppression model.
	StageNMSRunning
	// StageDecoded is a call that produced a result.
	StageDecoded
	// StageFailed is a call that returned an error.
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:            "idle",
	StageDetectorRunning: "detector_running",
	StageNMSRunning:      "nms_running",
	StageDecoded:         "decoded",
	StageFailed:          "failed",
}

// String returns the stage name.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDecoded || s == StageFailed
}

// Advance moves to next if the transition is legal.
//
// Legal transitions are Idle -> DetectorRunning -> NMSRunning -> Decoded, plus any
// non-terminal stage -> Failed.
//
// Arguments:
//   - next: The stage to move to.
//
// Returns:
//   - Stage: next on success, s otherwise.
//   - error: An error naming the illegal transition.
func (s Stage) Advance(next Stage) (Stage, error) {
	if s.Terminal() {
		return s, fmt.Errorf("illegal stage transition %s -> %s: %s is terminal", s, next, s)
	}
	if next == StageFailed || next == s+1 {
		return next, nil
	}
	return s, fmt.Errorf("illegal stage transition %s -> %s", s, next)
}
