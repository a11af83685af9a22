package transaction_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

func TestRequestSignature(t *testing.T) {
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := crypto.PubkeyToAddress(sk.PublicKey)
	in := types.EncryptedInput{
		Handle: types.NewHandle(crypto.Keccak256Hash([]byte("input")), types.KindUint64),
		Proof:  []byte{1, 2, 3},
	}

	sig, err := crypto.Sign(transaction.RequestDigest(transaction.KindStake, in), sk)
	require.NoError(t, err)
	require.NoError(t, transaction.VerifyRequest(transaction.KindStake, in, caller, sig))

	// 同一签名不能用于另一种操作
	err = transaction.VerifyRequest(transaction.KindUnstake, in, caller, sig)
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	err = transaction.VerifyRequest(transaction.KindStake, in, crypto.PubkeyToAddress(other.PublicKey), sig)
	require.ErrorIs(t, err, types.ErrInvalidSignature)

	err = transaction.VerifyRequest(transaction.KindStake, in, caller, sig[:64])
	require.ErrorIs(t, err, types.ErrInvalidSignature)
}
