package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/transaction"
)

// --- 写入部分 ---

// execer 是 *sql.DB 与 *sql.Tx 的公共部分
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Commit 在同一个 sqlite 事务中写入账户、全局状态、授权和回执
func (d *DB) Commit(ctx context.Context, acct ledger.Account, global ledger.GlobalState, grants []acl.Entry, tx *transaction.Transaction) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	if _, err = sqlTx.ExecContext(ctx, `
		INSERT INTO Accounts (owner, wallet, staked)
		VALUES (?, ?, ?)
		ON CONFLICT (owner) DO UPDATE SET
			wallet = excluded.wallet,
			staked = excluded.staked
	`, acct.Owner.Hex(), handleValue(acct.Wallet), handleValue(acct.Staked)); err != nil {
		return errors.Wrap(err, "write account")
	}

	if _, err = sqlTx.ExecContext(ctx, `
		INSERT INTO Global (id, total_staked)
		VALUES (0, ?)
		ON CONFLICT (id) DO UPDATE SET total_staked = excluded.total_staked
	`, handleValue(global.TotalStaked)); err != nil {
		return errors.Wrap(err, "write global state")
	}

	for _, g := range grants {
		if g.Handle.IsZero() {
			continue
		}
		if _, err = sqlTx.ExecContext(ctx, `
			INSERT OR IGNORE INTO AccessGrants (handle, principal) VALUES (?, ?)
		`, g.Handle.Bytes(), g.Principal.Hex()); err != nil {
			return errors.Wrap(err, "write grant")
		}
	}

	if err = writeTransaction(ctx, sqlTx, tx); err != nil {
		return err
	}
	return errors.Wrap(sqlTx.Commit(), "commit")
}

// PutTransaction 写入/更新单条回执，用于失败的交易
func (d *DB) PutTransaction(ctx context.Context, tx *transaction.Transaction) error {
	return writeTransaction(ctx, d.db, tx)
}

func writeTransaction(ctx context.Context, e execer, tx *transaction.Transaction) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO Transactions (
			uuid, confirming_phase, kind, caller, receipt,
			input_handle, err, err_kind, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uuid) DO UPDATE SET
			confirming_phase = excluded.confirming_phase,
			err = excluded.err,
			err_kind = excluded.err_kind,
			timestamp = excluded.timestamp
	`, tx.UUID.String(), tx.ConfirmingPhase, string(tx.Kind), tx.Caller.Hex(), tx.To.Hex(),
		handleValue(tx.InputHandle), tx.Err, tx.ErrKind, tx.TimeStamp)
	return errors.Wrap(err, "write transaction")
}

// SaveCoprocessorKeys 保存协处理器密钥，已存在时覆盖
func (d *DB) SaveCoprocessorKeys(ctx context.Context, keys []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO CoprocessorKeys (id, keys) VALUES (0, ?)
		ON CONFLICT (id) DO UPDATE SET keys = excluded.keys
	`, keys)
	return errors.Wrap(err, "write coprocessor keys")
}
