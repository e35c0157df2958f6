// Package domain defines the core types of the TransitGuard knowledge graph:
// the per-date SafetyIndex record, the service lifecycle state, and the
// closed set of error kinds shared by every layer.
package domain

// Graph labels and relationship types written by the loader.
const (
	LabelSafetyIndex = "SafetyIndex"
	RelNextDay       = "NEXT_DAY"
)

// SafetyIndex is the per-date safety score. Date is the node identity and is
// kept exactly as it appears in the source file.
type SafetyIndex struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// NextDay links the node for one source row to the node for the row after it.
type NextDay struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// State is the lifecycle state of the service.
type State int32

const (
	StateNotStarted State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "not_started"
	}
}
