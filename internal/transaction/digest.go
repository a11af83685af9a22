package transaction

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

var requestDomain = []byte("tZama-tx")

// RequestDigest 是 stake/unstake 请求的签名消息：
// keccak256("tZama-tx" ‖ kind ‖ handle ‖ proof)
func RequestDigest(kind Kind, in types.EncryptedInput) []byte {
	return crypto.Keccak256(requestDomain, []byte(kind), in.Handle.Bytes(), in.Proof)
}

// VerifyRequest 检查请求确实由 caller 签名
func VerifyRequest(kind Kind, in types.EncryptedInput, caller types.Principal, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return errors.Wrapf(types.ErrInvalidSignature, "signature length %d", len(sig))
	}
	pub, err := crypto.SigToPub(RequestDigest(kind, in), sig)
	if err != nil {
		return errors.Wrap(types.ErrInvalidSignature, err.Error())
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != caller {
		return errors.Wrapf(types.ErrInvalidSignature, "request signed by %s, not %s", signer.Hex(), caller.Hex())
	}
	return nil
}
