package orchestrator

import "github.com/tphakala/pokerwatch/internal/observability/metrics"

// State is the current pipeline step.
type State string

const (
	StateIdle        State = "IDLE"
	StateCollecting  State = "COLLECTING"
	StateValidating  State = "VALIDATING"
	StateStoring     State = "STORING"
	StateDetecting   State = "DETECTING"
	StateCorrelating State = "CORRELATING"
	StateFailed      State = "FAILED"
)

// allStates is the label set of the state gauge.
var allStates = []string{
	string(StateIdle),
	string(StateCollecting),
	string(StateValidating),
	string(StateStoring),
	string(StateDetecting),
	string(StateCorrelating),
	string(StateFailed),
}

func (s State) String() string { return string(s) }

// operation returns the metrics operation name of a pipeline step.
func (s State) operation() string {
	switch s {
	case StateCollecting:
		return metrics.OpCollect
	case StateValidating:
		return metrics.OpValidate
	case StateStoring:
		return metrics.OpStore
	case StateDetecting:
		return metrics.OpDetect
	case StateCorrelating:
		return metrics.OpCorrelate
	default:
		return metrics.OpCycle
	}
}

// Cycle triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerAPI      = "api"
)
