// 包 restfulpayload 包含了服务端与客户端通信的请求与响应结构体
package restfulpayload

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/CamberLoid/tzama/internal/handshake"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

const (
	StatusOK     = "OK"
	StatusFailed = "failed"
)

const (
	VersionEndpoint     = "/version"
	AddressEndpoint     = "/address"
	FaucetEndpoint      = "/ledger/faucet"
	StakeEndpoint       = "/ledger/stake"
	UnstakeEndpoint     = "/ledger/unstake"
	EncryptEndpoint     = "/input/encrypt"
	BalanceEndpoint     = "/ledger/balance"
	StakedEndpoint      = "/ledger/staked"
	TotalEndpoint       = "/ledger/total"
	TransactionEndpoint = "/ledger/tx"
	DecryptEndpoint     = "/decrypt"
	MetricsEndpoint     = "/metrics"
)

// Failure 是所有失败响应的格式，Kind 为 types.KindOf 的结果
type Failure struct {
	Status string `json:"status"`
	Err    string `json:"err"`
	Kind   string `json:"kind,omitempty"`
}

type VersionResp struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// AddressResp 返回客户端构造输入与授权所需的地址
type AddressResp struct {
	Status      string          `json:"status"`
	ChainID     int64           `json:"chainId"`
	Ledger      types.Principal `json:"ledger"`
	KMS         types.Principal `json:"kms"`
	Coprocessor types.Principal `json:"coprocessor"`
}

// FaucetReq 中 Amount 缺省时使用服务端的默认数额
type FaucetReq struct {
	To     types.Principal `json:"to"`
	Amount *uint64         `json:"amount,omitempty"`
}

// TxReq 是 stake/unstake 请求
// Signature 为 Caller 对 transaction.RequestDigest 的签名
type TxReq struct {
	Caller    types.Principal      `json:"caller"`
	Input     types.EncryptedInput `json:"input"`
	Signature hexutil.Bytes        `json:"signature"`
}

type TxResp struct {
	Status      string                   `json:"status"`
	Transaction *transaction.Transaction `json:"transaction"`
}

// EncryptReq 请求协处理器为 (Contract, Submitter) 构造输入
type EncryptReq struct {
	Value     uint64          `json:"value"`
	Contract  types.Principal `json:"contractAddress"`
	Submitter types.Principal `json:"userAddress"`
}

type EncryptResp struct {
	Status string               `json:"status"`
	Input  types.EncryptedInput `json:"input"`
}

type HandleResp struct {
	Status   string          `json:"status"`
	Handle   types.Handle    `json:"handle"`
	Contract types.Principal `json:"contractAddress"`
}

type DecryptReq = handshake.Request

type DecryptResp struct {
	Status string             `json:"status"`
	Sealed handshake.Response `json:"sealed"`
}
