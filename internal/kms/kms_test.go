package kms_test

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/gateway/mock"
	"github.com/CamberLoid/tzama/internal/handshake"
	"github.com/CamberLoid/tzama/internal/key"
	"github.com/CamberLoid/tzama/internal/kms"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/types"
)

var (
	ledgerAddr = common.HexToAddress("0x7a3a000000000000000000000000000000000001")
	domain     = handshake.Domain{ChainID: 31337, VerifyingContract: common.HexToAddress("0x0000000000000000000000000000000000000044")}
)

type fixture struct {
	gw      *mock.Gateway
	ledger  *ledger.Ledger
	service *kms.Service
	alice   *ecdsa.PrivateKey
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alice, err := crypto.GenerateKey()
	require.NoError(t, err)

	// 服务端时钟略快于客户端，UserDecrypt 以 time.Now() 作为授权起点
	f := &fixture{gw: mock.New(), alice: alice, now: time.Now().Add(time.Minute)}
	registry := acl.New()
	f.ledger = ledger.New(ledger.NewEngine(f.gw, ledgerAddr, ledger.Policy{}), registry)
	f.service = kms.New(f.gw, registry, kms.Config{Domain: domain, MaxGrantDuration: 24 * time.Hour},
		kms.WithClock(func() time.Time { return f.now }))

	ctx := context.Background()
	owner := f.aliceAddr()
	_, err = f.ledger.Faucet(ctx, owner, 1000)
	require.NoError(t, err)
	in, err := f.gw.Encrypt(ctx, 10, ledgerAddr, owner)
	require.NoError(t, err)
	_, err = f.ledger.Stake(ctx, owner, in)
	require.NoError(t, err)
	return f
}

func (f *fixture) aliceAddr() types.Principal { return crypto.PubkeyToAddress(f.alice.PublicKey) }

func (f *fixture) pairs() []types.HandleContractPair {
	owner := f.aliceAddr()
	return []types.HandleContractPair{
		{Handle: f.ledger.ConfidentialBalanceOf(owner), Contract: ledgerAddr},
		{Handle: f.ledger.GetStakedBalance(owner), Contract: ledgerAddr},
		{Handle: f.ledger.GetTotalStaked(), Contract: ledgerAddr},
	}
}

// session 返回一个已签名的会话，授权从 start 开始
func (f *fixture) session(t *testing.T, signer handshake.Signer, scope []types.Principal, start time.Time, d time.Duration) *handshake.Session {
	t.Helper()
	s := handshake.NewSession(domain)
	require.NoError(t, s.GenerateKeypair())
	_, err := s.Sign(signer, scope, start, d)
	require.NoError(t, err)
	return s
}

func TestOwnerDecryptsBalances(t *testing.T) {
	f := newFixture(t)
	pairs := f.pairs()

	got, err := handshake.UserDecrypt(context.Background(), f.service, handshake.NewKeySigner(f.alice), domain, pairs, time.Hour)
	require.NoError(t, err)
	require.Equal(t, uint64(990), got[pairs[0].Handle])
	require.Equal(t, uint64(10), got[pairs[1].Handle])
	require.Equal(t, uint64(10), got[pairs[2].Handle])
}

func TestExpiredGrantIsRejected(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, handshake.NewKeySigner(f.alice), []types.Principal{ledgerAddr}, f.now, time.Minute)

	f.now = f.now.Add(2 * time.Minute)
	_, err := s.Request(context.Background(), f.service, f.pairs())
	require.ErrorIs(t, err, types.ErrGrantExpired)
	require.Equal(t, handshake.Failed, s.State())
}

func TestGrantFromTheFutureIsRejected(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, handshake.NewKeySigner(f.alice), []types.Principal{ledgerAddr}, f.now.Add(time.Hour), time.Hour)
	_, err := s.Request(context.Background(), f.service, f.pairs())
	require.ErrorIs(t, err, types.ErrGrantExpired)
}

func TestGrantLongerThanMaximumIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	s := f.session(t, handshake.NewKeySigner(f.alice), []types.Principal{ledgerAddr}, f.now, 48*time.Hour)
	_, err := s.Request(context.Background(), f.service, f.pairs())
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
}

func TestOverflowingGrantDurationIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	sk, err := key.GenerateSessionKeyPair()
	require.NoError(t, err)

	// 换算为纳秒会溢出 int64 的时长
	const duration = int64(18446744074)
	start := f.now.Unix()
	scope := []types.Principal{ledgerAddr}
	hash, err := handshake.GrantHash(domain, sk.PublicKey[:], scope, start, duration)
	require.NoError(t, err)
	sig, err := handshake.NewKeySigner(f.alice).SignTypedDataHash(hash)
	require.NoError(t, err)

	f.now = f.now.AddDate(100, 0, 0)
	resp, err := f.service.UserDecrypt(context.Background(), &handshake.Request{
		HandleContractPairs: f.pairs(),
		PublicKey:           sk.PublicKey[:],
		Signature:           sig,
		UserAddress:         f.aliceAddr(),
		ContractAddresses:   scope,
		StartTimestamp:      start,
		DurationSeconds:     duration,
	})
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
	require.Nil(t, resp)
}

func TestOtherUserCannotDecrypt(t *testing.T) {
	f := newFixture(t)
	mallory, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = handshake.UserDecrypt(context.Background(), f.service, handshake.NewKeySigner(mallory), domain, f.pairs()[:1], time.Hour)
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
}

func TestForgedUserAddressIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	mallory, err := crypto.GenerateKey()
	require.NoError(t, err)

	forward := handshake.TransportFunc(func(ctx context.Context, req *handshake.Request) (handshake.Response, error) {
		req.UserAddress = f.aliceAddr()
		return f.service.UserDecrypt(ctx, req)
	})
	_, err = handshake.UserDecrypt(context.Background(), forward, handshake.NewKeySigner(mallory), domain, f.pairs()[:1], time.Hour)
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
	require.ErrorIs(t, err, types.ErrInvalidSignature)
	require.Equal(t, types.KindDecryptionUnauthorized, types.KindOf(err))
}

func TestContractOutsideScopeIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	s := f.session(t, handshake.NewKeySigner(f.alice), []types.Principal{other}, f.now, time.Hour)
	_, err := s.Request(context.Background(), f.service, f.pairs()[:1])
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
}

func TestHandleNotGrantedToContractIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x0000000000000000000000000000000000000bad")
	pair := types.HandleContractPair{Handle: f.ledger.ConfidentialBalanceOf(f.aliceAddr()), Contract: other}
	s := f.session(t, handshake.NewKeySigner(f.alice), []types.Principal{other}, f.now, time.Hour)
	_, err := s.Request(context.Background(), f.service, []types.HandleContractPair{pair})
	require.ErrorIs(t, err, types.ErrDecryptionUnauthorized)
}

func TestZeroHandleIsRejectedByService(t *testing.T) {
	f := newFixture(t)
	signer := handshake.NewKeySigner(f.alice)
	s := f.session(t, signer, []types.Principal{ledgerAddr}, f.now, time.Hour)
	grant := s.Grant()

	req := &handshake.Request{
		HandleContractPairs: []types.HandleContractPair{{Handle: types.ZeroHandle, Contract: ledgerAddr}},
		PublicKey:           grant.PublicKey,
		Signature:           grant.Signature,
		UserAddress:         grant.Signer,
		ContractAddresses:   grant.Scope,
		StartTimestamp:      grant.StartTimestamp,
		DurationSeconds:     grant.DurationSeconds,
	}
	_, err := f.service.UserDecrypt(context.Background(), req)
	require.ErrorIs(t, err, types.ErrInvalidHandle)
}
