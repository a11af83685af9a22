// 包 key 包含了方案中用到的密钥：
// 解密会话的一次性密钥对（NaCl box），以及账户的 secp256k1 签名密钥
package key

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"github.com/CamberLoid/tzama/internal/types"
)

const SessionKeyLength = 32

// SessionKeyPair 是单次解密会话的密钥对，不可跨会话复用。
// 私钥只保存在客户端，不会被发送。
type SessionKeyPair struct {
	Identifier uuid.UUID
	PublicKey  *[SessionKeyLength]byte
	PrivateKey *[SessionKeyLength]byte
}

// SigningKeyChain 是账户的签名密钥
type SigningKeyChain struct {
	Identifier uuid.UUID
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

var ErrSessionKeyWiped = errors.New("session private key already discarded")

// GenerateSessionKeyPair 生成新的一次性会话密钥对
func GenerateSessionKeyPair() (*SessionKeyPair, error) {
	pk, sk, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SessionKeyPair{Identifier: uuid.New(), PublicKey: pk, PrivateKey: sk}, nil
}

// Open 用会话私钥打开解密服务返回的密封数据
func (k *SessionKeyPair) Open(sealed []byte) ([]byte, error) {
	if k.PrivateKey == nil {
		return nil, ErrSessionKeyWiped
	}
	msg, ok := box.OpenAnonymous(nil, sealed, k.PublicKey, k.PrivateKey)
	if !ok {
		return nil, errors.New("open sealed payload failed")
	}
	return msg, nil
}

// Wipe 清零并丢弃私钥
func (k *SessionKeyPair) Wipe() {
	if k == nil || k.PrivateKey == nil {
		return
	}
	for i := range k.PrivateKey {
		k.PrivateKey[i] = 0
	}
	k.PrivateKey = nil
}

// Seal 由解密服务调用，将明文密封给会话公钥
func Seal(recipient *[SessionKeyLength]byte, msg []byte) ([]byte, error) {
	return box.SealAnonymous(nil, msg, recipient, rand.Reader)
}

// GenerateSigningKey 生成新的账户签名密钥
func GenerateSigningKey() (*SigningKeyChain, error) {
	sk, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewSigningKeyChain(sk), nil
}

func NewSigningKeyChain(sk *ecdsa.PrivateKey) *SigningKeyChain {
	return &SigningKeyChain{Identifier: uuid.New(), PrivateKey: sk, PublicKey: &sk.PublicKey}
}

// Address 返回签名密钥对应的账户地址
func (k SigningKeyChain) Address() types.Principal {
	return crypto.PubkeyToAddress(*k.PublicKey)
}
