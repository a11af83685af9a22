package types

import "errors"

// 错误分类。所有错误都可以用 errors.Is 区分，调用方据此决定是否重试。
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidProof           = errors.New("invalid input proof")
	ErrGrantExpired           = errors.New("decryption grant expired")
	ErrDecryptionUnauthorized = errors.New("decryption unauthorized")
	ErrTransportFailure       = errors.New("decryption service transport failure")

	ErrInvalidHandle    = errors.New("invalid handle")
	ErrUnknownHandle    = errors.New("unknown handle")
	ErrValueOutOfRange  = errors.New("value out of range")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidState     = errors.New("invalid session state")
)

// 跨 HTTP 传递时使用的错误类别名
const (
	KindInvalidAmount          = "InvalidAmount"
	KindInvalidProof           = "InvalidProof"
	KindGrantExpired           = "GrantExpired"
	KindDecryptionUnauthorized = "DecryptionUnauthorized"
	KindTransportFailure       = "TransportFailure"
	KindInvalidHandle          = "InvalidHandle"
	KindUnknownHandle          = "UnknownHandle"
	KindValueOutOfRange        = "ValueOutOfRange"
	KindInvalidSignature       = "InvalidSignature"
	KindInvalidState           = "InvalidState"
)

var kinds = []struct {
	kind string
	err  error
}{
	{KindInvalidAmount, ErrInvalidAmount},
	{KindInvalidProof, ErrInvalidProof},
	{KindGrantExpired, ErrGrantExpired},
	{KindDecryptionUnauthorized, ErrDecryptionUnauthorized},
	{KindTransportFailure, ErrTransportFailure},
	{KindInvalidHandle, ErrInvalidHandle},
	{KindUnknownHandle, ErrUnknownHandle},
	{KindValueOutOfRange, ErrValueOutOfRange},
	{KindInvalidSignature, ErrInvalidSignature},
	{KindInvalidState, ErrInvalidState},
}

// KindOf 返回 err 所属的类别名，无法识别时返回空字符串
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// ErrorOfKind 是 KindOf 的逆操作
func ErrorOfKind(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
