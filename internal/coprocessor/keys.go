package coprocessor

import (
	"crypto/ecdsa"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"

	"github.com/CamberLoid/tzama/internal/misc"
	"github.com/CamberLoid/tzama/internal/types"
)

// Keys 是协处理器的全部密钥材料：
// CKKS 网络密钥对，以及为输入证明签名的 secp256k1 密钥
type Keys struct {
	SecretKey *rlwe.SecretKey
	PublicKey *rlwe.PublicKey
	Signer    *ecdsa.PrivateKey
}

type keysJSON struct {
	SecretKey []byte `json:"sk"`
	PublicKey []byte `json:"pk"`
	Signer    []byte `json:"signer"`
}

// GenerateKeys 生成新的协处理器密钥
func GenerateKeys() (*Keys, error) {
	sk, pk := ckks.NewKeyGenerator(misc.GetCKKSParams()).GenKeyPair()
	signer, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate signer key")
	}
	return &Keys{SecretKey: sk, PublicKey: pk, Signer: signer}, nil
}

// SignerAddress 返回输入证明签名者的地址
func (k *Keys) SignerAddress() types.Principal {
	return crypto.PubkeyToAddress(k.Signer.PublicKey)
}

func (k *Keys) MarshalBinary() ([]byte, error) {
	sk, err := k.SecretKey.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal ckks secret key")
	}
	pk, err := k.PublicKey.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal ckks public key")
	}
	return json.Marshal(keysJSON{SecretKey: sk, PublicKey: pk, Signer: crypto.FromECDSA(k.Signer)})
}

func UnmarshalKeys(data []byte) (*Keys, error) {
	var raw keysJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode coprocessor keys")
	}
	params := misc.GetCKKSParams()

	sk := rlwe.NewSecretKey(params.Parameters)
	if err := sk.UnmarshalBinary(raw.SecretKey); err != nil {
		return nil, errors.Wrap(err, "unmarshal ckks secret key")
	}
	pk := rlwe.NewPublicKey(params.Parameters)
	if err := pk.UnmarshalBinary(raw.PublicKey); err != nil {
		return nil, errors.Wrap(err, "unmarshal ckks public key")
	}
	signer, err := crypto.ToECDSA(raw.Signer)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal signer key")
	}
	return &Keys{SecretKey: sk, PublicKey: pk, Signer: signer}, nil
}
