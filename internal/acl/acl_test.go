package acl_test

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/types"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func handle(seed string) types.Handle {
	return types.NewHandle(crypto.Keccak256Hash([]byte(seed)), types.KindUint64)
}

func TestGrantIsIdempotent(t *testing.T) {
	r := acl.New()
	h := handle("wallet")

	require.False(t, r.IsGranted(h, alice))
	r.Grant(h, alice)
	r.Grant(h, alice)
	r.GrantAll(acl.Entry{Handle: h, Principal: alice})

	require.True(t, r.IsGranted(h, alice))
	require.False(t, r.IsGranted(h, bob))
	require.Equal(t, 1, r.Len())
	require.Len(t, r.Entries(), 1)
}

func TestZeroHandleIsNeverStored(t *testing.T) {
	r := acl.New()
	r.Grant(types.ZeroHandle, alice)
	require.Zero(t, r.Len())
	require.False(t, r.IsGranted(types.ZeroHandle, alice))
}

func TestGrantsSurviveSupersession(t *testing.T) {
	r := acl.New()
	old, next := handle("v1"), handle("v2")
	r.Grant(old, alice)
	r.Grant(next, alice)
	require.True(t, r.IsGranted(old, alice))
	require.True(t, r.IsGranted(next, alice))
}

func TestConcurrentGrantAndRead(t *testing.T) {
	r := acl.New()
	h := handle("shared")
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Grant(h, alice)
		}()
		go func() {
			defer wg.Done()
			_ = r.IsGranted(h, alice)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, r.Len())
	require.True(t, r.IsGranted(h, alice))
}
