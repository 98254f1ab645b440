package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"satvault/core/types"
	"satvault/crypto"
)

func testOwner(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func vaultEvent(seq uint64, typ string, owner crypto.Address, id string) types.Event {
	return types.Event{
		Type:     typ,
		Height:   seq * 10,
		Sequence: seq,
		Attributes: map[string]string{
			"owner":   owner.String(),
			"vaultId": id,
		},
	}
}

func TestStoreVaultHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	alice, bob := testOwner(1), testOwner(2)

	require.NoError(t, store.Save(ctx, vaultEvent(1, "vault.created", alice, "1")))
	require.NoError(t, store.Save(ctx, vaultEvent(2, "vault.created", bob, "2")))
	require.NoError(t, store.Save(ctx, vaultEvent(3, "vault.minted", alice, "1")))
	require.NoError(t, store.Save(ctx, types.Event{Type: "oracle.price", Sequence: 4}))

	history, err := store.VaultHistory(ctx, alice, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "vault.created", history[0].Type)
	require.Equal(t, "vault.minted", history[1].Type)
	require.Equal(t, uint64(30), history[1].Height)
	require.Equal(t, "1", history[1].Attributes["vaultId"])

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(4), recent[0].Sequence)

	last, err := store.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)
}

func TestStoreSaveIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	evt := vaultEvent(1, "vault.created", testOwner(1), "1")

	require.NoError(t, store.Save(ctx, evt))
	require.NoError(t, store.Save(ctx, evt))

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestStoreEmpty(t *testing.T) {
	store := openTestStore(t)
	last, err := store.LastSequence(context.Background())
	require.NoError(t, err)
	require.Zero(t, last)
}

func TestEventIDDeterministic(t *testing.T) {
	a := vaultEvent(7, "vault.created", testOwner(1), "3")
	b := vaultEvent(7, "vault.created", testOwner(1), "3")
	require.Equal(t, EventID(a), EventID(b))
	require.Len(t, EventID(a), 64)

	b.Attributes["vaultId"] = "4"
	require.NotEqual(t, EventID(a), EventID(b))
}

func TestDialectorSelection(t *testing.T) {
	_, err := dialector("  ")
	require.Error(t, err)

	dial, err := dialector("postgres://user@localhost/satvault")
	require.NoError(t, err)
	require.Equal(t, "postgres", dial.Name())

	dial, err = dialector("sqlite://events.db")
	require.NoError(t, err)
	require.Equal(t, "sqlite", dial.Name())
}

func TestIndexerRun(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan types.Event, 2)
	done := make(chan error, 1)

	idx := New(store, nil)
	go func() {
		done <- idx.Run(ctx, updates, []types.Event{vaultEvent(1, "vault.created", testOwner(1), "1")})
	}()
	updates <- vaultEvent(2, "vault.minted", testOwner(1), "1")
	close(updates)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("indexer did not stop after the channel closed")
	}
	cancel()

	history, err := store.VaultHistory(context.Background(), testOwner(1), 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
