// 包 ledger 以密文句柄保存账户余额与全局质押量，
// 并用同态、无分支的更新在它们之间转移价值。
package ledger

import (
	"context"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

// TotalReaders 决定除账本自身外，谁可以解密总质押量句柄
type TotalReaders int

const (
	TotalToCaller TotalReaders = iota
	TotalToAdmins
	TotalToCallerAndAdmins
)

type Policy struct {
	TotalReaders TotalReaders
	Admins       []types.Principal
}

// Engine 自身不持有状态，每个转换接收一个 State 并返回下一个
type Engine struct {
	gw      gateway.Gateway
	address types.Principal
	policy  Policy
}

func NewEngine(gw gateway.Gateway, address types.Principal, policy Policy) *Engine {
	return &Engine{gw: gw, address: address, policy: policy}
}

func (e *Engine) Address() types.Principal { return e.address }

// Outcome 是一次成功的转换：新的 State、被修改的账户，以及必须一并提交的授权
type Outcome struct {
	Kind    transaction.Kind
	State   State
	Account Account
	Input   types.Handle
	Grants  []acl.Entry
}

// transfer 是一次受保护转移的结果。OK 与 Moved 均为密文，
// OK 为真时 Moved 等于转移量，否则为 0
type transfer struct {
	From, To  types.Handle
	OK, Moved types.Handle
}

// guardedTransfer 仅在 from >= amount 时把 amount 从 from 转到 to，
// 且不泄露走了哪个分支：两种结果都会计算再用 Select 选取，开销与秘密无关
func guardedTransfer(ctx context.Context, gw gateway.Gateway, from, to, amount types.Handle) (tr transfer, err error) {
	if tr.OK, err = gw.Ge(ctx, from, amount); err != nil {
		return tr, errors.Wrap(err, "compare balance")
	}
	debited, err := gw.Sub(ctx, from, amount)
	if err != nil {
		return tr, errors.Wrap(err, "debit")
	}
	credited, err := gw.Add(ctx, to, amount)
	if err != nil {
		return tr, errors.Wrap(err, "credit")
	}
	if tr.From, err = gw.Select(ctx, tr.OK, debited, from); err != nil {
		return tr, errors.Wrap(err, "select debit")
	}
	if tr.To, err = gw.Select(ctx, tr.OK, credited, to); err != nil {
		return tr, errors.Wrap(err, "select credit")
	}
	if tr.Moved, err = gw.Select(ctx, tr.OK, amount, types.ZeroHandle); err != nil {
		return tr, errors.Wrap(err, "select delta")
	}
	return tr, nil
}

// Faucet 向 to 的钱包铸造 amount。只增不减，无需保护
func (e *Engine) Faucet(ctx context.Context, st State, to types.Principal, amount uint64) (Outcome, error) {
	if amount == 0 {
		return Outcome{}, errors.Wrap(types.ErrInvalidAmount, "faucet amount must be greater than zero")
	}
	in, err := e.gw.Encrypt(ctx, amount, e.address, e.address)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "encrypt faucet amount")
	}
	minted, err := e.gw.Validate(ctx, in, e.address, e.address)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "validate faucet amount")
	}

	acct, _ := st.Account(to)
	if acct.Wallet, err = e.gw.Add(ctx, acct.Wallet, minted); err != nil {
		return Outcome{}, errors.Wrap(err, "credit wallet")
	}

	return Outcome{
		Kind:    transaction.KindFaucet,
		State:   st.with(acct, st.Global),
		Account: acct,
		Input:   minted,
		Grants:  e.ownerGrants(acct.Wallet, to),
	}, nil
}

// Stake 把加密金额从调用者钱包转入其质押余额。
// 钱包余额不足时转换照常提交，但所有余额保持不变
func (e *Engine) Stake(ctx context.Context, st State, caller types.Principal, in types.EncryptedInput) (Outcome, error) {
	return e.move(ctx, st, transaction.KindStake, caller, in)
}

// Unstake 是 Stake 的反向操作，以质押余额作保护
func (e *Engine) Unstake(ctx context.Context, st State, caller types.Principal, in types.EncryptedInput) (Outcome, error) {
	return e.move(ctx, st, transaction.KindUnstake, caller, in)
}

func (e *Engine) move(ctx context.Context, st State, kind transaction.Kind, caller types.Principal, in types.EncryptedInput) (Outcome, error) {
	amount, err := e.gw.Validate(ctx, in, e.address, caller)
	if err != nil {
		return Outcome{}, err
	}

	acct, _ := st.Account(caller)
	global := st.Global
	if kind == transaction.KindStake {
		tr, err := guardedTransfer(ctx, e.gw, acct.Wallet, acct.Staked, amount)
		if err != nil {
			return Outcome{}, err
		}
		acct.Wallet, acct.Staked = tr.From, tr.To
		if global.TotalStaked, err = e.gw.Add(ctx, global.TotalStaked, tr.Moved); err != nil {
			return Outcome{}, errors.Wrap(err, "credit total staked")
		}
	} else {
		tr, err := guardedTransfer(ctx, e.gw, acct.Staked, acct.Wallet, amount)
		if err != nil {
			return Outcome{}, err
		}
		acct.Staked, acct.Wallet = tr.From, tr.To
		if global.TotalStaked, err = e.gw.Sub(ctx, global.TotalStaked, tr.Moved); err != nil {
			return Outcome{}, errors.Wrap(err, "debit total staked")
		}
	}

	grants := e.ownerGrants(acct.Wallet, caller)
	grants = append(grants, e.ownerGrants(acct.Staked, caller)...)
	grants = append(grants, e.totalGrants(global.TotalStaked, caller)...)

	return Outcome{
		Kind:    kind,
		State:   st.with(acct, global),
		Account: acct,
		Input:   amount,
		Grants:  grants,
	}, nil
}

// ownerGrants 允许所有者解密 h，并允许账本继续对其运算
func (e *Engine) ownerGrants(h types.Handle, owner types.Principal) []acl.Entry {
	return []acl.Entry{
		{Handle: h, Principal: owner},
		{Handle: h, Principal: e.address},
	}
}

func (e *Engine) totalGrants(h types.Handle, caller types.Principal) []acl.Entry {
	out := []acl.Entry{{Handle: h, Principal: e.address}}
	if e.policy.TotalReaders != TotalToAdmins {
		out = append(out, acl.Entry{Handle: h, Principal: caller})
	}
	if e.policy.TotalReaders != TotalToCaller {
		for _, admin := range e.policy.Admins {
			out = append(out, acl.Entry{Handle: h, Principal: admin})
		}
	}
	return out
}
