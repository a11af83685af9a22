package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/transaction"
	"github.com/CamberLoid/tzama/internal/types"
)

// --- 读取部分 ---

// scanHandle 将可能为 NULL 的 BLOB 转换为句柄，NULL 即零句柄
func scanHandle(raw []byte) (types.Handle, error) {
	if len(raw) == 0 {
		return types.ZeroHandle, nil
	}
	return types.BytesToHandle(raw)
}

func handleValue(h types.Handle) interface{} {
	if h.IsZero() {
		return nil
	}
	return h.Bytes()
}

func (d *DB) GetTransaction(ctx context.Context, txUUID uuid.UUID) (*transaction.Transaction, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT confirming_phase, uuid, kind, caller, receipt,
			input_handle, err, err_kind, timestamp
		FROM Transactions
		WHERE uuid = ?
	`, txUUID.String())

	var (
		tx                  transaction.Transaction
		id, caller, receipt string
		input               []byte
		errText, errKind    sql.NullString
	)
	err := row.Scan(&tx.ConfirmingPhase, &id, &tx.Kind, &caller, &receipt, &input, &errText, &errKind, &tx.TimeStamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan transaction")
	}
	if tx.UUID, err = uuid.Parse(id); err != nil {
		return nil, errors.Wrap(err, "parse transaction uuid")
	}
	if tx.Caller, err = types.ParsePrincipal(caller); err != nil {
		return nil, errors.Wrap(err, "parse caller")
	}
	if tx.To, err = types.ParsePrincipal(receipt); err != nil {
		return nil, errors.Wrap(err, "parse receipt")
	}
	if tx.InputHandle, err = scanHandle(input); err != nil {
		return nil, errors.Wrap(err, "parse input handle")
	}
	tx.Err, tx.ErrKind = errText.String, errKind.String
	return &tx, nil
}

// LoadState 读取已提交的账本状态，用于服务重启
func (d *DB) LoadState(ctx context.Context) (ledger.State, error) {
	st := ledger.NewState()

	rows, err := d.db.QueryContext(ctx, `SELECT owner, wallet, staked FROM Accounts`)
	if err != nil {
		return st, errors.Wrap(err, "query accounts")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			owner          string
			wallet, staked []byte
			acct           ledger.Account
		)
		if err := rows.Scan(&owner, &wallet, &staked); err != nil {
			return st, errors.Wrap(err, "scan account")
		}
		if acct.Owner, err = types.ParsePrincipal(owner); err != nil {
			return st, errors.Wrap(err, "parse owner")
		}
		if acct.Wallet, err = scanHandle(wallet); err != nil {
			return st, errors.Wrapf(err, "wallet of %s", owner)
		}
		if acct.Staked, err = scanHandle(staked); err != nil {
			return st, errors.Wrapf(err, "staked of %s", owner)
		}
		st.Accounts[acct.Owner] = acct
	}
	if err := rows.Err(); err != nil {
		return st, errors.Wrap(err, "iterate accounts")
	}

	var total []byte
	err = d.db.QueryRowContext(ctx, `SELECT total_staked FROM Global WHERE id = 0`).Scan(&total)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return st, errors.Wrap(err, "query global state")
	default:
		if st.Global.TotalStaked, err = scanHandle(total); err != nil {
			return st, errors.Wrap(err, "total staked")
		}
	}
	return st, nil
}

// LoadGrants 将持久化的授权恢复到内存中的访问控制表
func (d *DB) LoadGrants(ctx context.Context, registry *acl.Registry) error {
	rows, err := d.db.QueryContext(ctx, `SELECT handle, principal FROM AccessGrants`)
	if err != nil {
		return errors.Wrap(err, "query grants")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			raw       []byte
			principal string
		)
		if err := rows.Scan(&raw, &principal); err != nil {
			return errors.Wrap(err, "scan grant")
		}
		h, err := types.BytesToHandle(raw)
		if err != nil {
			return err
		}
		p, err := types.ParsePrincipal(principal)
		if err != nil {
			return errors.Wrap(err, "parse principal")
		}
		registry.Grant(h, p)
	}
	return errors.Wrap(rows.Err(), "iterate grants")
}

// LoadCoprocessorKeys 在没有保存过密钥时返回 nil, nil
func (d *DB) LoadCoprocessorKeys(ctx context.Context) ([]byte, error) {
	var keys []byte
	err := d.db.QueryRowContext(ctx, `SELECT keys FROM CoprocessorKeys WHERE id = 0`).Scan(&keys)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query coprocessor keys")
	}
	return keys, nil
}
