package types

// Event represents a typed event emitted during state transitions. Height and
// Sequence are stamped by the ledger when the emitting operation commits.
type Event struct {
	Type       string            `json:"type"`
	Height     uint64            `json:"height"`
	Sequence   uint64            `json:"sequence"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy so subscribers cannot mutate shared history.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Height: e.Height, Sequence: e.Sequence}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}
