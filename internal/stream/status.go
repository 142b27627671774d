package stream

import "time"

// Phase is the connection phase of a Reader.
type Phase string

// Reader phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseBackoff    Phase = "backoff"
	PhaseStopped    Phase = "stopped"
)

// Status is a point-in-time view of a Reader.
type Status struct {
	Running       bool
	Phase         Phase
	ConnID        string
	Attempts      uint64
	Backoff       time.Duration
	FramesDecoded uint64
	FramesDropped uint64
	Overflows     uint64
	LastFrameAt   time.Time
	LastError     string
}
