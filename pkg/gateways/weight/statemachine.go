package weight

import "github.com/loadwatch/loadgate/pkg/entities"

// Decision is the outcome of evaluating one weight sample against the
// effective threshold.
type Decision struct {
	IsOverload   bool
	Transitioned bool
	EventType    string
}

// Evaluate compares a sample to the threshold and detects transitions
// against the previous snapshot. The comparison is strict: a weight equal
// to the threshold is not an overload.
func Evaluate(currentWeight, maxWeight float64, previousOverload bool) Decision {
	decision := Decision{IsOverload: currentWeight > maxWeight}
	if decision.IsOverload == previousOverload {
		return decision
	}
	decision.Transitioned = true
	if decision.IsOverload {
		decision.EventType = entities.EventOverload
	} else {
		decision.EventType = entities.EventRecovery
	}
	return decision
}
