package handshake

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

const (
	DomainName    = "Decryption"
	DomainVersion = "1"
	PrimaryType   = "UserDecryptRequestVerification"
)

// Domain 是授权签名的 EIP-712 域，VerifyingContract 为解密服务的地址
type Domain struct {
	ChainID           int64
	VerifyingContract types.Principal
}

var grantTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "publicKey", Type: "bytes"},
		{Name: "contractAddresses", Type: "address[]"},
		{Name: "startTimestamp", Type: "uint256"},
		{Name: "durationSeconds", Type: "uint256"},
	},
}

// TypedData 构造用户需要签名的授权消息
func TypedData(d Domain, publicKey []byte, scope []types.Principal, start, duration int64) apitypes.TypedData {
	contracts := make([]interface{}, len(scope))
	for i, c := range scope {
		contracts[i] = c.Hex()
	}
	return apitypes.TypedData{
		Types:       grantTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(d.ChainID),
			VerifyingContract: d.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(publicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatInt(start, 10),
			"durationSeconds":   strconv.FormatInt(duration, 10),
		},
	}
}

// GrantHash 返回授权消息的 EIP-712 摘要
func GrantHash(d Domain, publicKey []byte, scope []types.Principal, start, duration int64) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(TypedData(d, publicKey, scope, start, duration))
	if err != nil {
		return nil, errors.Wrap(err, "hash typed data")
	}
	return hash, nil
}

// RecoverSigner 从请求中恢复授权的签名者。钱包返回的 V 为 27/28，这里统一为 0/1
func RecoverSigner(d Domain, req *Request) (types.Principal, error) {
	if len(req.Signature) != crypto.SignatureLength {
		return types.Principal{}, errors.Wrapf(types.ErrInvalidSignature, "signature length %d", len(req.Signature))
	}
	hash, err := GrantHash(d, req.PublicKey, req.ContractAddresses, req.StartTimestamp, req.DurationSeconds)
	if err != nil {
		return types.Principal{}, errors.Wrap(types.ErrInvalidSignature, err.Error())
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, req.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return types.Principal{}, errors.Wrap(types.ErrInvalidSignature, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}
