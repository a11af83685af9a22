// 包 users 包含了用户的相关接口、结构体和方法
package users

import (
	"crypto/ecdsa"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/key"
	"github.com/CamberLoid/tzama/internal/types"
)

// 方案中的用户，包含用户的标识符、用户名和 secp256k1 签名密钥
// 约定一个用户只有一把签名密钥，地址由它导出
type User struct {
	UserIdentifier uuid.UUID
	UserName       string
	SigningKey     *key.SigningKeyChain
}

var ErrNoSigningKey = errors.New("user has no signing key")

// 生成一个新的空值用户
func NewUser() *User {
	user := new(User)
	user.UserIdentifier = uuid.New()
	return user
}

// 生成一个新的用户，包含用户名和新的签名密钥
func NewUserWithUserName(userName string) (*User, error) {
	user := NewUser()
	user.UserName = userName
	k, err := key.GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	user.SigningKey = k
	return user, nil
}

func (user *User) ImportECDSAPrivateKey(sk *ecdsa.PrivateKey) error {
	if sk == nil {
		return ErrNoSigningKey
	}
	user.SigningKey = key.NewSigningKeyChain(sk)
	return nil
}

// Address 返回用户的账户地址
func (user *User) Address() types.Principal {
	if user == nil || user.SigningKey == nil {
		return types.Principal{}
	}
	return user.SigningKey.Address()
}

// Sign 对 32 字节摘要签名，V 为 0/1
func (user *User) Sign(digest []byte) ([]byte, error) {
	if user.SigningKey == nil {
		return nil, ErrNoSigningKey
	}
	return crypto.Sign(digest, user.SigningKey.PrivateKey)
}

// LoadFromFile 读取 JSON 格式的签名密钥文件
func LoadFromFile(path string) (*User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read key file %s", path)
	}
	k, err := key.DecodeJSONToSigningKey(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode key file %s", path)
	}
	return &User{UserIdentifier: k.Identifier, SigningKey: k}, nil
}

// SaveToFile 将签名密钥写入文件，仅所有者可读
func (user *User) SaveToFile(path string) error {
	if user.SigningKey == nil {
		return ErrNoSigningKey
	}
	return errors.Wrapf(os.WriteFile(path, key.EncodeSigningKeyToJSON(user.SigningKey), 0o600), "write key file %s", path)
}
