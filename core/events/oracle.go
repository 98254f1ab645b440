package events

import (
	"satvault/core/types"
	"satvault/crypto"
)

const (
	TypeOracleAuthorized = "oracle.authorized"
	TypeOracleRevoked    = "oracle.revoked"
	TypeOraclePrice      = "oracle.price"
)

// OracleAuthorized is emitted when the administrator adds a price reporter.
type OracleAuthorized struct {
	Oracle crypto.Address
}

func (OracleAuthorized) EventType() string { return TypeOracleAuthorized }

func (e OracleAuthorized) Event() *types.Event {
	return &types.Event{
		Type:       TypeOracleAuthorized,
		Attributes: map[string]string{"oracle": formatAddress(e.Oracle)},
	}
}

// OracleRevoked is emitted when the administrator removes a price reporter.
type OracleRevoked struct {
	Oracle crypto.Address
}

func (OracleRevoked) EventType() string { return TypeOracleRevoked }

func (e OracleRevoked) Event() *types.Event {
	return &types.Event{
		Type:       TypeOracleRevoked,
		Attributes: map[string]string{"oracle": formatAddress(e.Oracle)},
	}
}

// PriceSubmitted is emitted for every accepted observation. Latest reports
// whether the observation became the current price.
type PriceSubmitted struct {
	Oracle    crypto.Address
	Price     uint64
	Timestamp uint64
	Latest    bool
}

func (PriceSubmitted) EventType() string { return TypeOraclePrice }

func (e PriceSubmitted) Event() *types.Event {
	latest := "false"
	if e.Latest {
		latest = "true"
	}
	return &types.Event{
		Type: TypeOraclePrice,
		Attributes: map[string]string{
			"oracle":    formatAddress(e.Oracle),
			"price":     formatUint(e.Price),
			"timestamp": formatUint(e.Timestamp),
			"latest":    latest,
		},
	}
}
