package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/types"
)

// 以下方法实现 coprocessor.Store

func (d *DB) PutCiphertext(h types.Handle, ct []byte) error {
	_, err := d.db.ExecContext(context.Background(), `
		INSERT OR IGNORE INTO Ciphertexts (handle, ciphertext) VALUES (?, ?)
	`, h.Bytes(), ct)
	return errors.Wrapf(err, "write ciphertext %s", h)
}

func (d *DB) GetCiphertext(h types.Handle) ([]byte, error) {
	var ct []byte
	err := d.db.QueryRowContext(context.Background(), `
		SELECT ciphertext FROM Ciphertexts WHERE handle = ?
	`, h.Bytes()).Scan(&ct)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(types.ErrUnknownHandle, h.Hex())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read ciphertext %s", h)
	}
	return ct, nil
}

func (d *DB) ConsumeInput(h types.Handle) error {
	res, err := d.db.ExecContext(context.Background(), `
		INSERT OR IGNORE INTO ConsumedInputs (handle) VALUES (?)
	`, h.Bytes())
	if err != nil {
		return errors.Wrapf(err, "consume input %s", h)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrap(types.ErrInvalidProof, "input already consumed")
	}
	return nil
}
