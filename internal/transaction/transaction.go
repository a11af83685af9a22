package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/CamberLoid/tzama/internal/types"
)

// Kind 是账本入口的种类
type Kind string

const (
	KindFaucet  Kind = "faucet"
	KindStake   Kind = "stake"
	KindUnstake Kind = "unstake"
)

// ConfirmingPhase 可能是 "processing", "confirmed", "failed"
const (
	PhaseProcessing = "processing"
	PhaseConfirmed  = "confirmed"
	PhaseFailed     = "failed"
)

// Transaction 是单笔账本操作的回执，
// 包含操作种类、调用者、输入句柄、阶段、时间戳等信息。
// 回执里不会出现任何明文金额；faucet 的金额本身是公开参数，不记录在此。
type Transaction struct {
	ConfirmingPhase string          `json:"confirmingPhase"`
	UUID            uuid.UUID       `json:"uuid"`
	Kind            Kind            `json:"kind"`
	Caller          types.Principal `json:"caller"`
	To              types.Principal `json:"to"`
	InputHandle     types.Handle    `json:"inputHandle"`
	Err             string          `json:"err,omitempty"`
	ErrKind         string          `json:"errKind,omitempty"`
	TimeStamp       int64           `json:"timestamp"` // unix 时间戳
}

// New 分配 uuid 并将交易标记为处理中
func New(kind Kind, caller, to types.Principal) *Transaction {
	return &Transaction{
		ConfirmingPhase: PhaseProcessing,
		UUID:            uuid.New(),
		Kind:            kind,
		Caller:          caller,
		To:              to,
	}
}

// Finish 将交易标记为已完成
// 该方法应该在状态与授权都已提交后使用
func (t *Transaction) Finish() {
	t.TimeStamp = time.Now().Unix()
	t.ConfirmingPhase = PhaseConfirmed
}

// Fail 记录失败原因，账本状态保持不变
func (t *Transaction) Fail(err error) {
	t.TimeStamp = time.Now().Unix()
	t.ConfirmingPhase = PhaseFailed
	t.Err = err.Error()
	t.ErrKind = types.KindOf(err)
}

func (t *Transaction) IsConfirmed() bool {
	return t.ConfirmingPhase == PhaseConfirmed
}
