package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/metrics"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

// ErrTransactionNotFound 表示回执不存在
var ErrTransactionNotFound = errors.New("ledger: transaction not found")

// Store 持久化已提交的转换。Commit 必须原子地写入账户、全局状态、授权和回执
type Store interface {
	Commit(ctx context.Context, acct Account, global GlobalState, grants []acl.Entry, tx *transaction.Transaction) error
	PutTransaction(ctx context.Context, tx *transaction.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// Ledger 承载 Engine：持有已提交的 State 并串行执行所有转换，
// 相当于宿主链的交易排序
type Ledger struct {
	engine   *Engine
	registry *acl.Registry
	store    Store
	log      *slog.Logger
	metrics  *metrics.LedgerMetrics

	mu    sync.RWMutex
	state State

	rmu      sync.Mutex
	receipts map[uuid.UUID]*transaction.Transaction
}

type Option func(*Ledger)

func WithStore(s Store) Option { return func(l *Ledger) { l.store = s } }

// WithState 从已持久化的状态启动账本
func WithState(st State) Option { return func(l *Ledger) { l.state = st.Clone() } }

func WithLogger(log *slog.Logger) Option { return func(l *Ledger) { l.log = log } }

func WithMetrics(m *metrics.LedgerMetrics) Option { return func(l *Ledger) { l.metrics = m } }

func New(engine *Engine, registry *acl.Registry, opts ...Option) *Ledger {
	l := &Ledger{
		engine:   engine,
		registry: registry,
		state:    NewState(),
		receipts: make(map[uuid.UUID]*transaction.Transaction),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With(slog.String("component", "ledger"))
	return l
}

func (l *Ledger) Address() types.Principal { return l.engine.Address() }

// --- 可变入口 ---

func (l *Ledger) Faucet(ctx context.Context, to types.Principal, amount uint64) (*transaction.Transaction, error) {
	tx := transaction.New(transaction.KindFaucet, l.Address(), to)
	return tx, l.apply(ctx, tx, func(st State) (Outcome, error) {
		return l.engine.Faucet(ctx, st, to, amount)
	})
}

func (l *Ledger) Stake(ctx context.Context, caller types.Principal, in types.EncryptedInput) (*transaction.Transaction, error) {
	tx := transaction.New(transaction.KindStake, caller, caller)
	tx.InputHandle = in.Handle
	return tx, l.apply(ctx, tx, func(st State) (Outcome, error) {
		return l.engine.Stake(ctx, st, caller, in)
	})
}

func (l *Ledger) Unstake(ctx context.Context, caller types.Principal, in types.EncryptedInput) (*transaction.Transaction, error) {
	tx := transaction.New(transaction.KindUnstake, caller, caller)
	tx.InputHandle = in.Handle
	return tx, l.apply(ctx, tx, func(st State) (Outcome, error) {
		return l.engine.Unstake(ctx, st, caller, in)
	})
}

// apply 在已提交状态上执行一次转换。状态、授权与回执要么全部提交，要么都不提交
func (l *Ledger) apply(ctx context.Context, tx *transaction.Transaction, transition func(State) (Outcome, error)) error {
	start := time.Now()
	log := l.log.With(slog.String("op", string(tx.Kind)), slog.String("caller", tx.Caller.Hex()), slog.String("tx", tx.UUID.String()))

	l.mu.Lock()
	out, err := transition(l.state)
	if err == nil {
		tx.Finish()
		if l.store != nil {
			err = l.store.Commit(ctx, out.Account, out.State.Global, out.Grants, tx)
			if err != nil {
				err = errors.Wrap(err, "commit transition")
			}
		}
	}
	if err == nil {
		l.state = out.State
		l.registry.GrantAll(out.Grants...)
	}
	accounts := len(l.state.Accounts)
	l.mu.Unlock()

	if err != nil {
		tx.Fail(err)
		if l.store != nil {
			if perr := l.store.PutTransaction(ctx, tx); perr != nil {
				log.Warn("persist failed receipt", slog.Any("error", perr))
			}
		}
		log.Info("transaction failed", slog.String("reason", types.KindOf(err)), slog.Any("error", err))
		l.metrics.ObserveTransaction(string(tx.Kind), "failed", time.Since(start))
	} else {
		log.Info("transaction confirmed", slog.String("account", out.Account.Owner.Hex()))
		l.metrics.ObserveTransaction(string(tx.Kind), "confirmed", time.Since(start))
		l.metrics.SetAccounts(accounts)
		l.metrics.SetGrants(l.registry.Len())
	}

	l.rmu.Lock()
	l.receipts[tx.UUID] = tx
	l.rmu.Unlock()
	return err
}

// --- 只读入口 ---

// ConfidentialBalanceOf 返回钱包句柄，未出现过的账户返回零句柄
func (l *Ledger) ConfidentialBalanceOf(owner types.Principal) types.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, _ := l.state.Account(owner)
	return acct.Wallet
}

func (l *Ledger) GetStakedBalance(owner types.Principal) types.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, _ := l.state.Account(owner)
	return acct.Staked
}

func (l *Ledger) GetTotalStaked() types.Handle {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Global.TotalStaked
}

// Snapshot 返回已提交状态的副本
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

func (l *Ledger) Transaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	l.rmu.Lock()
	tx, ok := l.receipts[id]
	l.rmu.Unlock()
	if ok {
		return tx, nil
	}
	if l.store == nil {
		return nil, ErrTransactionNotFound
	}
	return l.store.GetTransaction(ctx, id)
}
