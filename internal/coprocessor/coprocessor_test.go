package coprocessor_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/coprocessor"
	"github.com/CamberLoid/tzama/internal/types"
)

var (
	ledgerAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newCoprocessor(t testing.TB) *coprocessor.Coprocessor {
	keys, err := coprocessor.GenerateKeys()
	require.NoError(t, err)
	return coprocessor.New(keys, nil)
}

func encrypt(t *testing.T, c *coprocessor.Coprocessor, v uint64) types.Handle {
	in, err := c.Encrypt(context.Background(), v, ledgerAddr, alice)
	require.NoError(t, err)
	h, err := c.Validate(context.Background(), in, ledgerAddr, alice)
	require.NoError(t, err)
	return h
}

func TestCKKSEncryptAndDecrypt(t *testing.T) {
	c := newCoprocessor(t)
	ctx := context.Background()

	for _, v := range []uint64{0, 1, 400, 1000, 123456} {
		h := encrypt(t, c, v)
		require.Equal(t, types.KindUint64, h.Kind())
		got, err := c.Decrypt(ctx, h)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Less(t, c.Precision(), 0.01)
}

func TestArithmeticAndSelect(t *testing.T) {
	c := newCoprocessor(t)
	ctx := context.Background()

	wallet := encrypt(t, c, 1000)
	amount := encrypt(t, c, 400)

	diff, err := c.Sub(ctx, wallet, amount)
	require.NoError(t, err)
	sum, err := c.Add(ctx, types.ZeroHandle, amount)
	require.NoError(t, err)

	ok, err := c.Ge(ctx, wallet, amount)
	require.NoError(t, err)
	require.Equal(t, types.KindBool, ok.Kind())
	notOK, err := c.Ge(ctx, amount, wallet)
	require.NoError(t, err)

	picked, err := c.Select(ctx, ok, diff, wallet)
	require.NoError(t, err)
	require.NotEqual(t, diff, picked)
	kept, err := c.Select(ctx, notOK, diff, wallet)
	require.NoError(t, err)

	for h, want := range map[types.Handle]uint64{diff: 600, sum: 400, picked: 600, kept: 1000, ok: 1, notOK: 0} {
		got, err := c.Decrypt(ctx, h)
		require.NoError(t, err)
		require.Equal(t, want, got, h.Hex())
	}
}

func TestValidateRejectsForeignBindingAndReplay(t *testing.T) {
	c := newCoprocessor(t)
	ctx := context.Background()

	in, err := c.Encrypt(ctx, 5, ledgerAddr, alice)
	require.NoError(t, err)

	_, err = c.Validate(ctx, in, ledgerAddr, common.HexToAddress("0xb0b"))
	require.ErrorIs(t, err, types.ErrInvalidProof)

	_, err = c.Validate(ctx, in, ledgerAddr, alice)
	require.NoError(t, err)
	_, err = c.Validate(ctx, in, ledgerAddr, alice)
	require.ErrorIs(t, err, types.ErrInvalidProof)

	other := newCoprocessor(t)
	forged, err := other.Encrypt(ctx, 5, ledgerAddr, alice)
	require.NoError(t, err)
	_, err = c.Validate(ctx, forged, ledgerAddr, alice)
	require.ErrorIs(t, err, types.ErrInvalidProof)
}

func TestEncryptOutOfRange(t *testing.T) {
	c := newCoprocessor(t)
	_, err := c.Encrypt(context.Background(), 1<<40, ledgerAddr, alice)
	require.ErrorIs(t, err, types.ErrValueOutOfRange)
}

func TestKeysRoundTrip(t *testing.T) {
	keys, err := coprocessor.GenerateKeys()
	require.NoError(t, err)
	store := coprocessor.NewMemStore()
	c := coprocessor.New(keys, store)
	h := encrypt(t, c, 77)

	data, err := keys.MarshalBinary()
	require.NoError(t, err)
	restored, err := coprocessor.UnmarshalKeys(data)
	require.NoError(t, err)
	require.Equal(t, keys.SignerAddress(), restored.SignerAddress())

	got, err := coprocessor.New(restored, store).Decrypt(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, uint64(77), got)
}

func BenchmarkGuardedTransfer(b *testing.B) {
	c := newCoprocessor(b)
	ctx := context.Background()
	wallet, _ := c.Encrypt(ctx, 1000, ledgerAddr, alice)
	for i := 0; i < b.N; i++ {
		amount, _ := c.Encrypt(ctx, 1, ledgerAddr, alice)
		ok, err := c.Ge(ctx, wallet.Handle, amount.Handle)
		if err != nil {
			b.Fatal(err)
		}
		diff, err := c.Sub(ctx, wallet.Handle, amount.Handle)
		if err != nil {
			b.Fatal(err)
		}
		if _, err = c.Select(ctx, ok, diff, wallet.Handle); err != nil {
			b.Fatal(err)
		}
	}
}
