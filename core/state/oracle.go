package state

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"satvault/core/types"
	"satvault/crypto"
)

var (
	adminKey          = kvKey([]byte("oracle/admin"))
	oraclePrefix      = []byte("oracle/member:")
	oracleListKey     = kvKey([]byte("oracle/members"))
	pricePrefix       = []byte("oracle/price:")
	latestPriceKey    = kvKey([]byte("oracle/price/latest"))
	oracleMemberValue = []byte{0x01}
)

type storedObservation struct {
	Price      uint64
	Timestamp  uint64
	Reporter   []byte
	ReceivedAt uint64
}

func oracleKey(addr []byte) []byte {
	return prefixedKey(oraclePrefix, addr)
}

func priceKey(timestamp uint64) []byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], timestamp)
	return prefixedKey(pricePrefix, ts[:])
}

// Admin returns the persisted administrator address. The boolean reports
// whether one has been recorded.
func (m *Manager) Admin() (crypto.Address, bool, error) {
	data, err := m.get(adminKey)
	if err != nil {
		return crypto.Address{}, false, err
	}
	if len(data) == 0 {
		return crypto.Address{}, false, nil
	}
	addr, err := crypto.AddressFromBytes(data)
	if err != nil {
		return crypto.Address{}, false, fmt.Errorf("decode admin: %w", err)
	}
	return addr, true, nil
}

// SetAdmin records the administrator. It may only be written once.
func (m *Manager) SetAdmin(addr crypto.Address) error {
	raw := addr.Bytes()
	if len(raw) != crypto.AddressLength || addr.IsZero() {
		return fmt.Errorf("admin address required")
	}
	existing, ok, err := m.Admin()
	if err != nil {
		return err
	}
	if ok {
		if existing.Equal(addr) {
			return nil
		}
		return fmt.Errorf("admin already set to %s", existing.String())
	}
	return m.put(adminKey, raw)
}

// IsOracle reports whether addr may submit prices.
func (m *Manager) IsOracle(addr crypto.Address) (bool, error) {
	raw := addr.Bytes()
	if len(raw) == 0 {
		return false, nil
	}
	data, err := m.get(oracleKey(raw))
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, oracleMemberValue), nil
}

// SetOracle adds or removes addr from the oracle authorization set.
func (m *Manager) SetOracle(addr crypto.Address, authorized bool) error {
	raw := addr.Bytes()
	if len(raw) != crypto.AddressLength {
		return fmt.Errorf("oracle address required")
	}
	members, err := m.oracleMembers()
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, member := range members {
		if !bytes.Equal(member, raw) {
			filtered = append(filtered, member)
		}
	}
	if authorized {
		filtered = append(filtered, append([]byte(nil), raw...))
		if err := m.put(oracleKey(raw), oracleMemberValue); err != nil {
			return err
		}
	} else if err := m.del(oracleKey(raw)); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	return m.put(oracleListKey, encoded)
}

// Oracles returns the authorized reporters in authorization order.
func (m *Manager) Oracles() ([]crypto.Address, error) {
	members, err := m.oracleMembers()
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(members))
	for _, raw := range members {
		addr, err := crypto.AddressFromBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (m *Manager) oracleMembers() ([][]byte, error) {
	data, err := m.get(oracleListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// PutPriceObservation stores obs under its reported timestamp and advances the
// latest pointer when obs.Timestamp is not older than the current latest. It
// reports whether obs became the latest observation.
func (m *Manager) PutPriceObservation(obs *types.PriceObservation) (bool, error) {
	if obs == nil {
		return false, fmt.Errorf("price observation must not be nil")
	}
	encoded, err := rlp.EncodeToBytes(&storedObservation{
		Price:      obs.Price,
		Timestamp:  obs.Timestamp,
		Reporter:   append([]byte(nil), obs.Reporter.Bytes()...),
		ReceivedAt: obs.ReceivedAt,
	})
	if err != nil {
		return false, err
	}
	if err := m.put(priceKey(obs.Timestamp), encoded); err != nil {
		return false, err
	}
	data, err := m.get(latestPriceKey)
	if err != nil {
		return false, err
	}
	if len(data) > 0 {
		var latest uint64
		if err := rlp.DecodeBytes(data, &latest); err != nil {
			return false, err
		}
		if obs.Timestamp < latest {
			return false, nil
		}
	}
	if err := m.writeUint(latestPriceKey, obs.Timestamp); err != nil {
		return false, err
	}
	return true, nil
}

// PriceObservation loads the observation recorded for timestamp.
func (m *Manager) PriceObservation(timestamp uint64) (*types.PriceObservation, bool, error) {
	data, err := m.get(priceKey(timestamp))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	stored := new(storedObservation)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("decode price observation: %w", err)
	}
	obs := &types.PriceObservation{
		Price:      stored.Price,
		Timestamp:  stored.Timestamp,
		ReceivedAt: stored.ReceivedAt,
	}
	if len(stored.Reporter) > 0 {
		reporter, err := crypto.AddressFromBytes(stored.Reporter)
		if err != nil {
			return nil, false, fmt.Errorf("decode price reporter: %w", err)
		}
		obs.Reporter = reporter
	}
	return obs, true, nil
}

// LatestPriceObservation returns the observation with the greatest reported
// timestamp.
func (m *Manager) LatestPriceObservation() (*types.PriceObservation, bool, error) {
	data, err := m.get(latestPriceKey)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var latest uint64
	if err := rlp.DecodeBytes(data, &latest); err != nil {
		return nil, false, err
	}
	return m.PriceObservation(latest)
}
