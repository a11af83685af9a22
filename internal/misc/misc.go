package misc

import (
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// GetCKKSParams 返回方案使用的 CKKS 安全参数
func GetCKKSParams() ckks.Parameters {
	params, _ := ckks.NewParametersFromLiteral(ckks.PN12QP109)
	return params
}

// NewCiphertext 创建新的空密文，用于反序列化
func NewCiphertext() *rlwe.Ciphertext {
	params := GetCKKSParams()
	return ckks.NewCiphertext(params, 1, params.MaxLevel())
}
