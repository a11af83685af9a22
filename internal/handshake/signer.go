package handshake

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/CamberLoid/tzama/internal/types"
)

// Signer 代表持有账户私钥的一方（钱包）
type Signer interface {
	Address() types.Principal
	SignTypedDataHash(hash []byte) ([]byte, error)
}

// KeySigner 直接使用本地 secp256k1 私钥签名
type KeySigner struct {
	key *ecdsa.PrivateKey
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

func (s *KeySigner) Address() types.Principal {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignTypedDataHash 与 eth_signTypedData_v4 一致，V 为 27/28
func (s *KeySigner) SignTypedDataHash(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
