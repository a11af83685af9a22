package ledger_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/gateway/mock"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

var (
	ledgerAddr = common.HexToAddress("0x7a3a000000000000000000000000000000000001")
	alice      = common.HexToAddress("0xa11ce")
	bob        = common.HexToAddress("0xb0b")
	admin      = common.HexToAddress("0xad")
)

type fixture struct {
	gw       *mock.Gateway
	registry *acl.Registry
	ledger   *ledger.Ledger
}

func newFixture(t *testing.T, policy ledger.Policy) *fixture {
	t.Helper()
	gw := mock.New()
	registry := acl.New()
	return &fixture{
		gw:       gw,
		registry: registry,
		ledger:   ledger.New(ledger.NewEngine(gw, ledgerAddr, policy), registry),
	}
}

func (f *fixture) decrypt(t *testing.T, h types.Handle) uint64 {
	t.Helper()
	v, err := f.gw.Decrypt(context.Background(), h)
	require.NoError(t, err)
	return v
}

func (f *fixture) input(t *testing.T, caller common.Address, v uint64) types.EncryptedInput {
	t.Helper()
	in, err := f.gw.Encrypt(context.Background(), v, ledgerAddr, caller)
	require.NoError(t, err)
	return in
}

func (f *fixture) balances(t *testing.T, owner common.Address) (wallet, staked, total uint64) {
	return f.decrypt(t, f.ledger.ConfidentialBalanceOf(owner)),
		f.decrypt(t, f.ledger.GetStakedBalance(owner)),
		f.decrypt(t, f.ledger.GetTotalStaked())
}

func TestMintStakeUnstakeRoundTrip(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()

	tx, err := f.ledger.Faucet(ctx, alice, 1000)
	require.NoError(t, err)
	require.True(t, tx.IsConfirmed())
	wallet, staked, total := f.balances(t, alice)
	require.Equal(t, []uint64{1000, 0, 0}, []uint64{wallet, staked, total})

	_, err = f.ledger.Stake(ctx, alice, f.input(t, alice, 400))
	require.NoError(t, err)
	wallet, staked, total = f.balances(t, alice)
	require.Equal(t, []uint64{600, 400, 400}, []uint64{wallet, staked, total})

	_, err = f.ledger.Unstake(ctx, alice, f.input(t, alice, 400))
	require.NoError(t, err)
	wallet, staked, total = f.balances(t, alice)
	require.Equal(t, []uint64{1000, 0, 0}, []uint64{wallet, staked, total})
}

func TestTotalIsSumOfStakes(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()

	for owner, amounts := range map[common.Address][2]uint64{alice: {1000, 250}, bob: {500, 125}} {
		_, err := f.ledger.Faucet(ctx, owner, amounts[0])
		require.NoError(t, err)
		_, err = f.ledger.Stake(ctx, owner, f.input(t, owner, amounts[1]))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(375), f.decrypt(t, f.ledger.GetTotalStaked()))

	_, err := f.ledger.Unstake(ctx, bob, f.input(t, bob, 100))
	require.NoError(t, err)
	require.Equal(t, uint64(275), f.decrypt(t, f.ledger.GetTotalStaked()))
	require.Equal(t, uint64(25), f.decrypt(t, f.ledger.GetStakedBalance(bob)))
}

func TestGuardedUnderflowIsSilentNoOp(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()

	_, err := f.ledger.Faucet(ctx, alice, 100)
	require.NoError(t, err)
	_, err = f.ledger.Stake(ctx, alice, f.input(t, alice, 40))
	require.NoError(t, err)

	before := f.ledger.Snapshot()

	tx, err := f.ledger.Stake(ctx, alice, f.input(t, alice, 61))
	require.NoError(t, err)
	require.True(t, tx.IsConfirmed())
	wallet, staked, total := f.balances(t, alice)
	require.Equal(t, []uint64{60, 40, 40}, []uint64{wallet, staked, total})

	_, err = f.ledger.Unstake(ctx, alice, f.input(t, alice, 41))
	require.NoError(t, err)
	wallet, staked, total = f.balances(t, alice)
	require.Equal(t, []uint64{60, 40, 40}, []uint64{wallet, staked, total})

	// 即使金额不足，句柄也会被替换
	after := f.ledger.Snapshot()
	require.NotEqual(t, before.Accounts[alice].Wallet, after.Accounts[alice].Wallet)
	require.NotEqual(t, before.Global.TotalStaked, after.Global.TotalStaked)
}

func TestUnstakeWithoutAccountCreatesZeroAccount(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	_, err := f.ledger.Unstake(context.Background(), bob, f.input(t, bob, 5))
	require.NoError(t, err)
	wallet, staked, total := f.balances(t, bob)
	require.Equal(t, []uint64{0, 0, 0}, []uint64{wallet, staked, total})
	_, ok := f.ledger.Snapshot().Account(bob)
	require.True(t, ok)
}

func TestFaucetRejectsZeroAmount(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	tx, err := f.ledger.Faucet(context.Background(), alice, 0)
	require.ErrorIs(t, err, types.ErrInvalidAmount)
	require.Equal(t, transaction.PhaseFailed, tx.ConfirmingPhase)
	require.Equal(t, types.KindInvalidAmount, tx.ErrKind)
	_, ok := f.ledger.Snapshot().Account(alice)
	require.False(t, ok)
}

func TestInvalidProofLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()
	_, err := f.ledger.Faucet(ctx, alice, 100)
	require.NoError(t, err)
	before := f.ledger.Snapshot()
	grants := f.registry.Len()

	// 为 bob 构造的输入不能被 alice 使用
	_, err = f.ledger.Stake(ctx, alice, f.input(t, bob, 10))
	require.ErrorIs(t, err, types.ErrInvalidProof)

	in := f.input(t, alice, 10)
	in.Proof[3] ^= 0xff
	_, err = f.ledger.Stake(ctx, alice, in)
	require.ErrorIs(t, err, types.ErrInvalidProof)

	require.Equal(t, before, f.ledger.Snapshot())
	require.Equal(t, grants, f.registry.Len())
}

func TestInputIsConsumedOnce(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()
	_, err := f.ledger.Faucet(ctx, alice, 100)
	require.NoError(t, err)

	in := f.input(t, alice, 10)
	_, err = f.ledger.Stake(ctx, alice, in)
	require.NoError(t, err)
	_, err = f.ledger.Stake(ctx, alice, in)
	require.ErrorIs(t, err, types.ErrInvalidProof)
	require.Equal(t, uint64(10), f.decrypt(t, f.ledger.GetStakedBalance(alice)))
}

func TestUnknownOwnerReadsZeroHandle(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	require.True(t, f.ledger.ConfidentialBalanceOf(alice).IsZero())
	require.True(t, f.ledger.GetStakedBalance(alice).IsZero())
	require.True(t, f.ledger.GetTotalStaked().IsZero())
}

func TestGrantsFollowStoredHandles(t *testing.T) {
	f := newFixture(t, ledger.Policy{TotalReaders: ledger.TotalToCallerAndAdmins, Admins: []common.Address{admin}})
	ctx := context.Background()
	_, err := f.ledger.Faucet(ctx, alice, 100)
	require.NoError(t, err)
	_, err = f.ledger.Stake(ctx, alice, f.input(t, alice, 10))
	require.NoError(t, err)

	wallet := f.ledger.ConfidentialBalanceOf(alice)
	staked := f.ledger.GetStakedBalance(alice)
	total := f.ledger.GetTotalStaked()
	for _, h := range []types.Handle{wallet, staked, total} {
		require.True(t, f.registry.IsGranted(h, alice))
		require.True(t, f.registry.IsGranted(h, ledgerAddr))
		require.False(t, f.registry.IsGranted(h, bob))
	}
	require.True(t, f.registry.IsGranted(total, admin))
	require.False(t, f.registry.IsGranted(wallet, admin))
}

func TestTotalReadersAdminsOnly(t *testing.T) {
	f := newFixture(t, ledger.Policy{TotalReaders: ledger.TotalToAdmins, Admins: []common.Address{admin}})
	ctx := context.Background()
	_, err := f.ledger.Faucet(ctx, alice, 100)
	require.NoError(t, err)
	_, err = f.ledger.Stake(ctx, alice, f.input(t, alice, 10))
	require.NoError(t, err)

	total := f.ledger.GetTotalStaked()
	require.False(t, f.registry.IsGranted(total, alice))
	require.True(t, f.registry.IsGranted(total, admin))
}

func TestReceiptsAreRecorded(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()
	tx, err := f.ledger.Faucet(ctx, alice, 1)
	require.NoError(t, err)

	got, err := f.ledger.Transaction(ctx, tx.UUID)
	require.NoError(t, err)
	require.Equal(t, transaction.KindFaucet, got.Kind)
	require.Equal(t, alice, got.To)
}

func TestConcurrentAccountsKeepTotalConsistent(t *testing.T) {
	f := newFixture(t, ledger.Policy{})
	ctx := context.Background()

	owners := make([]common.Address, 16)
	for i := range owners {
		owners[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
	}

	var wg sync.WaitGroup
	for _, owner := range owners {
		wg.Add(1)
		go func(owner common.Address) {
			defer wg.Done()
			if _, err := f.ledger.Faucet(ctx, owner, 50); err != nil {
				t.Error(err)
				return
			}
			in, err := f.gw.Encrypt(ctx, 20, ledgerAddr, owner)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := f.ledger.Stake(ctx, owner, in); err != nil {
				t.Error(err)
			}
		}(owner)
	}
	wg.Wait()

	var sum uint64
	for _, owner := range owners {
		sum += f.decrypt(t, f.ledger.GetStakedBalance(owner))
	}
	require.Equal(t, uint64(20*len(owners)), sum)
	require.Equal(t, sum, f.decrypt(t, f.ledger.GetTotalStaked()))
}
