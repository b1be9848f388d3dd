package detect

import (
	"context"
	"time"
)

// ScanCycleRecord captures the outcome of one scan cycle for audit sinks.
type ScanCycleRecord struct {
	StartAt        time.Time
	EndAt          time.Time
	USB            bool
	Bluetooth      bool
	LimitToDrivers []string
	// Outcome is one of OutcomeMatched, OutcomeExhausted,
	// OutcomeCancelled or OutcomeError.
	Outcome string
	// Driver and DeviceID are set when Outcome is OutcomeMatched.
	Driver   string
	DeviceID string
	// Candidates counts how many candidates were offered to the consumer.
	Candidates int
	Error      string
}

// ScanRecorder receives callbacks from the detector to persist scan cycle
// outcomes. Implementations must tolerate being called from the scan worker
// goroutine.
type ScanRecorder interface {
	RecordCycle(ctx context.Context, rec *ScanCycleRecord) error
}

type noopScanRecorder struct{}

func (noopScanRecorder) RecordCycle(ctx context.Context, rec *ScanCycleRecord) error { return nil }
