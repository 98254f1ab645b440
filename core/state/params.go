package state

import (
	"fmt"
	"strings"
)

var paramPrefix = []byte("params:")

func paramKey(name string) []byte {
	return prefixedKey(paramPrefix, []byte(name))
}

// ParamStoreSet stores the raw encoded value of a governance parameter.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("params: name must not be empty")
	}
	return m.put(paramKey(trimmed), value)
}

// ParamStoreGet returns the raw encoded value of a governance parameter.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, fmt.Errorf("params: name must not be empty")
	}
	data, err := m.get(paramKey(trimmed))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}
