package key

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// --- 签名密钥的 JSON 格式部分 --- //
// {"id": (uuid), "address": (0x...), "privateKey": (0x...)}

type SigningKeyJSON struct {
	Identifier uuid.UUID      `json:"id"`
	Address    common.Address `json:"address"`
	PrivateKey string         `json:"privateKey"`
}

func EncodeSigningKeyToJSON(k *SigningKeyChain) []byte {
	jsonData, _ := json.Marshal(SigningKeyJSON{
		Identifier: k.Identifier,
		Address:    k.Address(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(k.PrivateKey)),
	})
	return jsonData
}

// DecodeJSONToSigningKey 解析签名密钥，并校验地址与私钥是否一致
func DecodeJSONToSigningKey(jsonData []byte) (*SigningKeyChain, error) {
	var raw SigningKeyJSON
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, err
	}
	sk, err := crypto.HexToECDSA(strings.TrimPrefix(raw.PrivateKey, "0x"))
	if err != nil {
		return nil, err
	}
	k := NewSigningKeyChain(sk)
	if raw.Identifier != uuid.Nil {
		k.Identifier = raw.Identifier
	}
	if raw.Address != (common.Address{}) && raw.Address != k.Address() {
		return nil, fmt.Errorf("address %s does not match private key", raw.Address.Hex())
	}
	return k, nil
}
