package indexer

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"satvault/core/types"
)

// EventRecord is the persisted projection of a committed ledger event.
type EventRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	Sequence   uint64 `gorm:"uniqueIndex;not null"`
	Height     uint64 `gorm:"index;not null"`
	Type       string `gorm:"size:64;index;not null"`
	Owner      string `gorm:"size:96;index:idx_event_vault"`
	VaultID    uint64 `gorm:"index:idx_event_vault"`
	Attributes string `gorm:"type:text"`
	IndexedAt  time.Time
}

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}

// EventID derives a deterministic identifier from the event contents so
// replays of the same event collapse onto one row.
func EventID(evt types.Event) string {
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasher := blake3.New(32, nil)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], evt.Sequence)
	_, _ = hasher.Write(seq[:])
	_, _ = hasher.Write([]byte(evt.Type))
	for _, k := range keys {
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write([]byte(k))
		_, _ = hasher.Write([]byte{'='})
		_, _ = hasher.Write([]byte(evt.Attributes[k]))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func newRecord(evt types.Event, now time.Time) (*EventRecord, error) {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, err
	}
	record := &EventRecord{
		ID:         EventID(evt),
		Sequence:   evt.Sequence,
		Height:     evt.Height,
		Type:       evt.Type,
		Owner:      evt.Attributes["owner"],
		Attributes: string(attrs),
		IndexedAt:  now.UTC(),
	}
	if raw, ok := evt.Attributes["vaultId"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			record.VaultID = id
		}
	}
	return record, nil
}

func (r EventRecord) event() (types.Event, error) {
	evt := types.Event{Type: r.Type, Height: r.Height, Sequence: r.Sequence}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &evt.Attributes); err != nil {
			return types.Event{}, err
		}
	}
	return evt, nil
}
