package gateway

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

// ProofDigest 是输入证明签名的消息：keccak256(handle ‖ contract ‖ submitter)
func ProofDigest(h types.Handle, contract, submitter types.Principal) []byte {
	return crypto.Keccak256(h.Bytes(), contract.Bytes(), submitter.Bytes())
}

// SignProof 由协处理器对输入进行签名，得到 65 字节的证明
func SignProof(key *ecdsa.PrivateKey, h types.Handle, contract, submitter types.Principal) ([]byte, error) {
	sig, err := crypto.Sign(ProofDigest(h, contract, submitter), key)
	if err != nil {
		return nil, errors.Wrap(err, "sign input proof")
	}
	return sig, nil
}

// VerifyProof 恢复证明的签名者，并与协处理器地址比较
func VerifyProof(signer types.Principal, in types.EncryptedInput, contract, submitter types.Principal) error {
	if in.Handle.IsZero() || len(in.Proof) != crypto.SignatureLength {
		return types.ErrInvalidProof
	}
	pub, err := crypto.SigToPub(ProofDigest(in.Handle, contract, submitter), in.Proof)
	if err != nil {
		return errors.Wrap(types.ErrInvalidProof, err.Error())
	}
	if crypto.PubkeyToAddress(*pub) != signer {
		return types.ErrInvalidProof
	}
	if in.Handle.Kind() != types.KindUint64 {
		return errors.Wrap(types.ErrInvalidProof, "input is not a euint64")
	}
	return nil
}
