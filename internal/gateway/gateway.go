// 包 gateway 定义账本与持有全部密文的加密协处理器之间的约定。
//
// 账本看不到明文，只把句柄交给 Gateway 并保存返回的句柄。
// 作为操作数的零句柄视为 0 的加密。
package gateway

import (
	"context"

	"github.com/CamberLoid/tzama/internal/types"
)

// Gateway 是账本可变入口所依赖的最小接口
type Gateway interface {
	// Validate 按 (contract, submitter) 校验客户端输入的证明并返回可用句柄。
	// 所有失败均为 types.ErrInvalidProof，同一输入只能校验一次
	Validate(ctx context.Context, in types.EncryptedInput, contract, submitter types.Principal) (types.Handle, error)

	// Encrypt 为 v 构造绑定到 (contract, submitter) 的 EncryptedInput
	Encrypt(ctx context.Context, v uint64, contract, submitter types.Principal) (types.EncryptedInput, error)

	Add(ctx context.Context, a, b types.Handle) (types.Handle, error)
	Sub(ctx context.Context, a, b types.Handle) (types.Handle, error)

	// Ge 返回加密的布尔值 a >= b
	Ge(ctx context.Context, a, b types.Handle) (types.Handle, error)

	// Select 返回新句柄：cond 为真时为 a，否则为 b
	Select(ctx context.Context, cond, a, b types.Handle) (types.Handle, error)
}

// Decrypter 只由解密服务持有，账本永远拿不到
type Decrypter interface {
	Decrypt(ctx context.Context, h types.Handle) (uint64, error)
}

// Coprocessor 是具体后端需要提供的全部能力
type Coprocessor interface {
	Gateway
	Decrypter
}
