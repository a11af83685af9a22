// 包 types 包含账本、协处理器与解密握手共用的类型
package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// HandleLength 是密文句柄的字节长度，对应链上的 bytes32
const HandleLength = common.HashLength

// Kind 是句柄所指向明文的类型，编码在句柄的第 30 字节
type Kind byte

const (
	KindBool   Kind = 0x00
	KindUint64 Kind = 0x05
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "ebool"
	case KindUint64:
		return "euint64"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// HandleVersion 编码在句柄的最后一个字节
const HandleVersion byte = 0x00

const (
	kindOffset    = 30
	versionOffset = 31
)

// Handle 是密文的不透明引用。句柄本身不敏感，创建后不可变。
// 全零句柄表示“从未赋值”，解密结果恒为 0，不需要访问解密服务。
type Handle [HandleLength]byte

// ZeroHandle 是“从未赋值”的哨兵句柄
var ZeroHandle Handle

// NewHandle 以 digest 的前 30 字节为主体，写入类型和版本
func NewHandle(digest common.Hash, kind Kind) (h Handle) {
	copy(h[:kindOffset], digest[:kindOffset])
	h[kindOffset] = byte(kind)
	h[versionOffset] = HandleVersion
	return
}

func (h Handle) IsZero() bool { return h == ZeroHandle }

func (h Handle) Kind() Kind { return Kind(h[kindOffset]) }

func (h Handle) Bytes() []byte { return h[:] }

func (h Handle) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Handle) String() string { return h.Hex() }

func (h Handle) Hash() common.Hash { return common.Hash(h) }

// BytesToHandle 将 32 字节切片转换为句柄，长度不符时报错
func BytesToHandle(b []byte) (h Handle, err error) {
	if len(b) != HandleLength {
		return h, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidHandle, HandleLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHandle 解析 0x 前缀的十六进制句柄
func ParseHandle(s string) (Handle, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return ZeroHandle, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}
	return BytesToHandle(raw)
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Principal 是账户地址，可以是用户，也可以是合约（账本本身）
type Principal = common.Address

// ParsePrincipal 校验并解析十六进制地址
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Principal{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
