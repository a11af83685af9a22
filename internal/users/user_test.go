package users_test

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/users"
)

func TestUserSignRecoversAddress(t *testing.T) {
	alice, err := users.NewUserWithUserName("alice")
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("stake"))
	sig, err := alice.Sign(digest)
	require.NoError(t, err)

	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	require.Equal(t, alice.Address(), crypto.PubkeyToAddress(*pub))
}

func TestUserWithoutKey(t *testing.T) {
	u := users.NewUser()
	_, err := u.Sign(make([]byte, 32))
	require.ErrorIs(t, err, users.ErrNoSigningKey)
	require.Equal(t, [20]byte{}, [20]byte(u.Address()))
}

func TestUserFileRoundTrip(t *testing.T) {
	alice, err := users.NewUserWithUserName("alice")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "alice.json")
	require.NoError(t, alice.SaveToFile(path))

	loaded, err := users.LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, alice.Address(), loaded.Address())

	_, err = users.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
