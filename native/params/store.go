package params

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for governance-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetRisk validates and persists the risk parameters. Values are marshalled as
// JSON so the stored form matches the API payloads.
func (s *Store) SetRisk(risk RiskParameters) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	if err := risk.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(risk)
	if err != nil {
		return fmt.Errorf("params: encode risk: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyRisk, encoded)
}

// Risk loads the persisted risk parameters. When unset, the defaults are
// returned.
func (s *Store) Risk() (RiskParameters, error) {
	state, err := s.withState()
	if err != nil {
		return RiskParameters{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyRisk)
	if err != nil {
		return RiskParameters{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return DefaultRiskParameters(), nil
	}
	var risk RiskParameters
	if err := json.Unmarshal(raw, &risk); err != nil {
		return RiskParameters{}, fmt.Errorf("params: decode risk: %w", err)
	}
	return risk, nil
}

// SetPauses persists the supplied pause configuration under the canonical
// parameter store key.
func (s *Store) SetPauses(pauses Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(pauses)
	if err != nil {
		return fmt.Errorf("params: encode pauses: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyPauses, encoded)
}

// Pauses loads the persisted pause configuration. When unset, a zero-value
// configuration is returned.
func (s *Store) Pauses() (Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return Pauses{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyPauses)
	if err != nil {
		return Pauses{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return Pauses{}, nil
	}
	var pauses Pauses
	if err := json.Unmarshal(raw, &pauses); err != nil {
		return Pauses{}, fmt.Errorf("params: decode pauses: %w", err)
	}
	return pauses, nil
}
