// 包 mock 是加密协处理器的确定性替身。
// 句柄只是内存中明文的标签，单元测试无需任何密码学即可运行账本。
// 算术按 euint64 回绕。
package mock

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/types"
)

type entry struct {
	kind  types.Kind
	value uint64
}

type Gateway struct {
	mu       sync.Mutex
	key      *ecdsa.PrivateKey
	signer   types.Principal
	seq      uint64
	values   map[types.Handle]entry
	consumed map[types.Handle]struct{}
	ops      map[string]int
}

var _ gateway.Coprocessor = (*Gateway)(nil)

// New 返回的 mock 使用固定种子派生的证明签名者，两个 mock 互相接受对方的证明
func New() *Gateway {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("tzama/mock-coprocessor")))
	if err != nil {
		panic(err)
	}
	return &Gateway{
		key:      key,
		signer:   crypto.PubkeyToAddress(key.PublicKey),
		values:   make(map[types.Handle]entry),
		consumed: make(map[types.Handle]struct{}),
		ops:      make(map[string]int),
	}
}

// Signer 是输入证明的签名地址
func (g *Gateway) Signer() types.Principal { return g.signer }

// Ops 返回 op 被调用的次数
func (g *Gateway) Ops(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ops[op]
}

// Handles 返回 mock 当前跟踪的密文数量
func (g *Gateway) Handles() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}

func (g *Gateway) newHandle(op string, kind types.Kind, v uint64) types.Handle {
	g.seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], g.seq)
	h := types.NewHandle(crypto.Keccak256Hash([]byte(op), buf[:]), kind)
	g.values[h] = entry{kind: kind, value: v}
	g.ops[op]++
	return h
}

func (g *Gateway) load(h types.Handle, want types.Kind) (uint64, error) {
	if h.IsZero() {
		return 0, nil
	}
	e, ok := g.values[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownHandle, h)
	}
	if e.kind != want {
		return 0, fmt.Errorf("%w: %s is %s, want %s", types.ErrInvalidHandle, h, e.kind, want)
	}
	return e.value, nil
}

func (g *Gateway) Encrypt(_ context.Context, v uint64, contract, submitter types.Principal) (types.EncryptedInput, error) {
	g.mu.Lock()
	h := g.newHandle("encrypt", types.KindUint64, v)
	g.mu.Unlock()

	proof, err := gateway.SignProof(g.key, h, contract, submitter)
	if err != nil {
		return types.EncryptedInput{}, err
	}
	return types.EncryptedInput{Handle: h, Proof: proof}, nil
}

func (g *Gateway) Validate(_ context.Context, in types.EncryptedInput, contract, submitter types.Principal) (types.Handle, error) {
	if err := gateway.VerifyProof(g.signer, in, contract, submitter); err != nil {
		return types.ZeroHandle, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.values[in.Handle]; !ok {
		return types.ZeroHandle, fmt.Errorf("%w: unknown ciphertext", types.ErrInvalidProof)
	}
	if _, used := g.consumed[in.Handle]; used {
		return types.ZeroHandle, fmt.Errorf("%w: input already consumed", types.ErrInvalidProof)
	}
	g.consumed[in.Handle] = struct{}{}
	g.ops["validate"]++
	return in.Handle, nil
}

func (g *Gateway) binary(op string, a, b types.Handle, f func(x, y uint64) (types.Kind, uint64)) (types.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	x, err := g.load(a, types.KindUint64)
	if err != nil {
		return types.ZeroHandle, err
	}
	y, err := g.load(b, types.KindUint64)
	if err != nil {
		return types.ZeroHandle, err
	}
	kind, v := f(x, y)
	return g.newHandle(op, kind, v), nil
}

func (g *Gateway) Add(_ context.Context, a, b types.Handle) (types.Handle, error) {
	return g.binary("add", a, b, func(x, y uint64) (types.Kind, uint64) { return types.KindUint64, x + y })
}

func (g *Gateway) Sub(_ context.Context, a, b types.Handle) (types.Handle, error) {
	return g.binary("sub", a, b, func(x, y uint64) (types.Kind, uint64) { return types.KindUint64, x - y })
}

func (g *Gateway) Ge(_ context.Context, a, b types.Handle) (types.Handle, error) {
	return g.binary("ge", a, b, func(x, y uint64) (types.Kind, uint64) {
		if x >= y {
			return types.KindBool, 1
		}
		return types.KindBool, 0
	})
}

func (g *Gateway) Select(_ context.Context, cond, a, b types.Handle) (types.Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, err := g.load(cond, types.KindBool)
	if err != nil {
		return types.ZeroHandle, err
	}
	x, err := g.load(a, types.KindUint64)
	if err != nil {
		return types.ZeroHandle, err
	}
	y, err := g.load(b, types.KindUint64)
	if err != nil {
		return types.ZeroHandle, err
	}
	if c == 1 {
		return g.newHandle("select", types.KindUint64, x), nil
	}
	return g.newHandle("select", types.KindUint64, y), nil
}

func (g *Gateway) Decrypt(_ context.Context, h types.Handle) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h.IsZero() {
		return 0, nil
	}
	e, ok := g.values[h]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnknownHandle, h)
	}
	g.ops["decrypt"]++
	return e.value, nil
}
