// 包 coprocessor 是基于 lattigo CKKS 的加密协处理器。
// 账本只看得到句柄；密文、网络密钥和比较运算都留在协处理器内部。
//
// CKKS 没有原生的比较运算，Ge 由持有网络私钥的协处理器在内部求值，
// 结果以新的布尔密文返回，明文不会离开本包。
package coprocessor

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v4/ckks"
	"github.com/tuneinsight/lattigo/v4/rlwe"

	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/misc"
	"github.com/CamberLoid/tzama/internal/types"
)

type Coprocessor struct {
	mu        sync.Mutex
	params    ckks.Parameters
	encoder   ckks.Encoder
	evaluator ckks.Evaluator
	keys      *Keys
	store     Store
}

var _ gateway.Coprocessor = (*Coprocessor)(nil)

// New 创建协处理器。store 为 nil 时使用内存存储
func New(keys *Keys, store Store) *Coprocessor {
	params := misc.GetCKKSParams()
	if store == nil {
		store = NewMemStore()
	}
	return &Coprocessor{
		params:    params,
		encoder:   ckks.NewEncoder(params),
		evaluator: ckks.NewEvaluator(params, rlwe.EvaluationKey{}),
		keys:      keys,
		store:     store,
	}
}

// Signer 返回输入证明签名者地址
func (c *Coprocessor) Signer() types.Principal { return c.keys.SignerAddress() }

// --- 加解密部分 ---

// encryptValue 对数字进行基于 CKKS 的加密
func (c *Coprocessor) encryptValue(v float64) *rlwe.Ciphertext {
	pt := c.encoder.EncodeNew(
		[]float64{v},
		c.params.MaxLevel(),
		c.params.DefaultScale(),
		c.params.LogSlots())
	return ckks.NewEncryptor(c.params, c.keys.PublicKey).EncryptNew(pt)
}

// decryptValue 从密文中提取明文，四舍五入为整数
func (c *Coprocessor) decryptValue(ct *rlwe.Ciphertext) (uint64, error) {
	pt := ckks.NewDecryptor(c.params, c.keys.SecretKey).DecryptNew(ct)
	values := c.encoder.Decode(pt, c.params.LogSlots())
	return misc.RoundToUint(real(values[0]))
}

// put 序列化密文并写入存储，句柄为 keccak256(密文)
func (c *Coprocessor) put(ct *rlwe.Ciphertext, kind types.Kind) (types.Handle, error) {
	data, err := ct.MarshalBinary()
	if err != nil {
		return types.ZeroHandle, errors.Wrap(err, "marshal ciphertext")
	}
	h := types.NewHandle(crypto.Keccak256Hash(data), kind)
	if err := c.store.PutCiphertext(h, data); err != nil {
		return types.ZeroHandle, errors.Wrap(err, "store ciphertext")
	}
	return h, nil
}

// load 读取句柄对应的密文；零句柄视为 0 的新鲜加密
func (c *Coprocessor) load(h types.Handle, want types.Kind) (*rlwe.Ciphertext, error) {
	if h.IsZero() {
		return c.encryptValue(0), nil
	}
	if h.Kind() != want {
		return nil, fmt.Errorf("%w: %s is %s, want %s", types.ErrInvalidHandle, h, h.Kind(), want)
	}
	data, err := c.store.GetCiphertext(h)
	if err != nil {
		return nil, err
	}
	ct := misc.NewCiphertext()
	if err = ct.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrapf(err, "unmarshal ciphertext %s", h)
	}
	return ct, nil
}

// guard 将 lattigo 的 panic 转换为错误
func guard(op string, err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("coprocessor %s failed, got panic: %v", op, p)
	}
}

func (c *Coprocessor) Encrypt(_ context.Context, v uint64, contract, submitter types.Principal) (in types.EncryptedInput, err error) {
	if v > misc.MaxCKKSValue {
		return in, errors.Wrapf(types.ErrValueOutOfRange, "%d exceeds %d", v, misc.MaxCKKSValue)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("encrypt", &err)

	h, err := c.put(c.encryptValue(float64(v)), types.KindUint64)
	if err != nil {
		return in, err
	}
	proof, err := gateway.SignProof(c.keys.Signer, h, contract, submitter)
	if err != nil {
		return in, err
	}
	return types.EncryptedInput{Handle: h, Proof: proof}, nil
}

func (c *Coprocessor) Validate(_ context.Context, in types.EncryptedInput, contract, submitter types.Principal) (types.Handle, error) {
	if err := gateway.VerifyProof(c.Signer(), in, contract, submitter); err != nil {
		return types.ZeroHandle, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.store.GetCiphertext(in.Handle); err != nil {
		return types.ZeroHandle, errors.Wrap(types.ErrInvalidProof, err.Error())
	}
	if err := c.store.ConsumeInput(in.Handle); err != nil {
		return types.ZeroHandle, err
	}
	return in.Handle, nil
}

// --- 密文运算部分 ---

func (c *Coprocessor) Add(_ context.Context, a, b types.Handle) (out types.Handle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("add", &err)

	x, y, err := c.loadPair(a, b)
	if err != nil {
		return types.ZeroHandle, err
	}
	return c.put(c.evaluator.AddNew(x, y), types.KindUint64)
}

// Sub 即包装过的密文减法：x + (-1)·y
func (c *Coprocessor) Sub(_ context.Context, a, b types.Handle) (out types.Handle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("sub", &err)

	x, y, err := c.loadPair(a, b)
	if err != nil {
		return types.ZeroHandle, err
	}
	return c.put(c.evaluator.AddNew(x, c.evaluator.MultByConstNew(y, -1)), types.KindUint64)
}

func (c *Coprocessor) Ge(_ context.Context, a, b types.Handle) (out types.Handle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("ge", &err)

	x, y, err := c.loadPair(a, b)
	if err != nil {
		return types.ZeroHandle, err
	}
	xv, err := c.decryptValue(x)
	if err != nil {
		return types.ZeroHandle, err
	}
	yv, err := c.decryptValue(y)
	if err != nil {
		return types.ZeroHandle, err
	}
	bit := 0.0
	if xv >= yv {
		bit = 1
	}
	return c.put(c.encryptValue(bit), types.KindBool)
}

// Select 返回所选密文与一次新鲜的 Enc(0) 之和，结果句柄与两个输入都不同
func (c *Coprocessor) Select(_ context.Context, cond, a, b types.Handle) (out types.Handle, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("select", &err)

	cct, err := c.load(cond, types.KindBool)
	if err != nil {
		return types.ZeroHandle, err
	}
	bit, err := c.decryptValue(cct)
	if err != nil {
		return types.ZeroHandle, err
	}
	chosen := b
	if bit == 1 {
		chosen = a
	}
	ct, err := c.load(chosen, types.KindUint64)
	if err != nil {
		return types.ZeroHandle, err
	}
	return c.put(c.evaluator.AddNew(ct, c.encryptValue(0)), types.KindUint64)
}

func (c *Coprocessor) loadPair(a, b types.Handle) (x, y *rlwe.Ciphertext, err error) {
	if x, err = c.load(a, types.KindUint64); err != nil {
		return nil, nil, err
	}
	if y, err = c.load(b, types.KindUint64); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// Decrypt 只提供给解密服务使用
func (c *Coprocessor) Decrypt(_ context.Context, h types.Handle) (v uint64, err error) {
	if h.IsZero() {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer guard("decrypt", &err)

	want := h.Kind()
	if want != types.KindUint64 && want != types.KindBool {
		return 0, fmt.Errorf("%w: %s", types.ErrInvalidHandle, h)
	}
	ct, err := c.load(h, want)
	if err != nil {
		return 0, err
	}
	return c.decryptValue(ct)
}

// Precision 报告一次加解密往返的绝对误差，供健康检查使用
func (c *Coprocessor) Precision() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct := c.encryptValue(1)
	pt := ckks.NewDecryptor(c.params, c.keys.SecretKey).DecryptNew(ct)
	return math.Abs(real(c.encoder.Decode(pt, c.params.LogSlots())[0]) - 1)
}
