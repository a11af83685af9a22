package key

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func MarshalSessionPublicKey(pk *[SessionKeyLength]byte) string {
	return hexutil.Encode(pk[:])
}

// SessionPublicKeyFromBytes 复制 raw 为定长公钥，长度不符时报错
func SessionPublicKeyFromBytes(raw []byte) (*[SessionKeyLength]byte, error) {
	if len(raw) != SessionKeyLength {
		return nil, fmt.Errorf("session public key must be %d bytes, got %d", SessionKeyLength, len(raw))
	}
	pk := new([SessionKeyLength]byte)
	copy(pk[:], raw)
	return pk, nil
}
