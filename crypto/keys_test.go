package crypto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	decoded, err := DecodeAddress(addr.String())
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
	require.Equal(t, AccountPrefix, decoded.Prefix())
}

func TestAddressJSON(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[19] = 0x7
	addr := NewAddress(AccountPrefix, raw)

	encoded, err := json.Marshal(struct {
		Owner Address `json:"owner"`
	}{Owner: addr})
	require.NoError(t, err)

	var out struct {
		Owner Address `json:"owner"`
	}
	require.NoError(t, json.Unmarshal(encoded, &out))
	require.True(t, addr.Equal(out.Owner))
}

func TestZeroAddress(t *testing.T) {
	require.True(t, Address{}.IsZero())
	require.True(t, NewAddress(AccountPrefix, make([]byte, AddressLength)).IsZero())

	_, err := AddressFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
