package handshake

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/CamberLoid/tzama/internal/types"
)

// Grant 是签名后的解密授权。会话私钥不在其中，永远不会被发送。
type Grant struct {
	PublicKey       []byte
	Scope           []types.Principal
	StartTimestamp  int64
	DurationSeconds int64
	Signer          types.Principal
	Signature       []byte
}

// Expiry 返回授权失效的时刻
func (g *Grant) Expiry() time.Time {
	return time.Unix(g.StartTimestamp+g.DurationSeconds, 0)
}

// Request 是发往解密服务的请求
type Request struct {
	HandleContractPairs []types.HandleContractPair `json:"handleContractPairs"`
	PublicKey           hexutil.Bytes              `json:"publicKey"`
	Signature           hexutil.Bytes              `json:"signature"`
	UserAddress         types.Principal            `json:"userAddress"`
	ContractAddresses   []types.Principal          `json:"contractAddresses"`
	StartTimestamp      int64                      `json:"startTimestamp,string"`
	DurationSeconds     int64                      `json:"durationSeconds,string"`
}

// Response 将句柄映射到密封给会话公钥的十进制明文
type Response map[types.Handle]hexutil.Bytes

func (g *Grant) request(pairs []types.HandleContractPair) *Request {
	return &Request{
		HandleContractPairs: pairs,
		PublicKey:           g.PublicKey,
		Signature:           g.Signature,
		UserAddress:         g.Signer,
		ContractAddresses:   g.Scope,
		StartTimestamp:      g.StartTimestamp,
		DurationSeconds:     g.DurationSeconds,
	}
}

// Transport 把请求送到解密服务。HTTP 实现在 clientlib，进程内实现在 kms
type Transport interface {
	UserDecrypt(ctx context.Context, req *Request) (Response, error)
}

type TransportFunc func(ctx context.Context, req *Request) (Response, error)

func (f TransportFunc) UserDecrypt(ctx context.Context, req *Request) (Response, error) {
	return f(ctx, req)
}
