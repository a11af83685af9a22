package ledger

import (
	"github.com/CamberLoid/tzama/internal/types"
)

// Account 是账户的加密余额，两个句柄总是有值，可能为零句柄
type Account struct {
	Owner  types.Principal `json:"owner"`
	Wallet types.Handle    `json:"wallet"`
	Staked types.Handle    `json:"staked"`
}

type GlobalState struct {
	TotalStaked types.Handle `json:"totalStaked"`
}

// State 是完整的账本值。转换从不原地修改 State，
// 而是返回一个与输入不共享可变数据的新值
type State struct {
	Accounts map[types.Principal]Account `json:"accounts"`
	Global   GlobalState                 `json:"global"`
}

func NewState() State {
	return State{Accounts: make(map[types.Principal]Account)}
}

// Account 返回 owner 的账户，从未交互过的账户返回零值
func (s State) Account(owner types.Principal) (Account, bool) {
	acct, ok := s.Accounts[owner]
	if !ok {
		return Account{Owner: owner}, false
	}
	return acct, true
}

func (s State) Clone() State {
	out := State{
		Accounts: make(map[types.Principal]Account, len(s.Accounts)),
		Global:   s.Global,
	}
	for k, v := range s.Accounts {
		out.Accounts[k] = v
	}
	return out
}

func (s State) with(acct Account, global GlobalState) State {
	out := s.Clone()
	out.Accounts[acct.Owner] = acct
	out.Global = global
	return out
}
