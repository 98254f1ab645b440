package events

import (
	"strings"

	"satvault/core/types"
)

// TypeParamsUpdated is emitted when governance changes a parameter.
const TypeParamsUpdated = "params.updated"

// ParamsUpdated records a single parameter change.
type ParamsUpdated struct {
	Name     string
	Previous string
	Value    string
}

func (ParamsUpdated) EventType() string { return TypeParamsUpdated }

func (e ParamsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeParamsUpdated,
		Attributes: map[string]string{
			"name":     strings.TrimSpace(e.Name),
			"previous": e.Previous,
			"value":    e.Value,
		},
	}
}
