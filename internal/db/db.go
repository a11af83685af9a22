// 包 db 是账本、访问控制表和协处理器密文的 sqlite 持久化
package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// --- 初始化：建表 ---

// table Accounts
// owner TEXT 主键，地址的十六进制
// wallet, staked BLOB <- 32 字节句柄，未赋值时为 NULL
func CreateAccountTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Accounts (
			owner TEXT PRIMARY KEY NOT NULL,
			wallet BLOB,
			staked BLOB
		);
	`
}

// table Global 只有一行
func CreateGlobalTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Global (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			total_staked BLOB
		);
	`
}

// table AccessGrants
// 只增不删，(handle, principal) 唯一
func CreateAccessGrantTable() string {
	return `
		CREATE TABLE IF NOT EXISTS AccessGrants (
			handle BLOB NOT NULL,
			principal TEXT NOT NULL,
			PRIMARY KEY (handle, principal)
		);
	`
}

// table Ciphertexts
// ciphertext BLOB <- rlwe.Ciphertext.MarshalBinary 编码
func CreateCiphertextTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Ciphertexts (
			handle BLOB PRIMARY KEY NOT NULL,
			ciphertext BLOB NOT NULL
		);
	`
}

// table ConsumedInputs 记录已被入口消费的输入
func CreateConsumedInputTable() string {
	return `
		CREATE TABLE IF NOT EXISTS ConsumedInputs (
			handle BLOB PRIMARY KEY NOT NULL
		);
	`
}

// table Transactions
func CreateTransactionTable() string {
	return `
		CREATE TABLE IF NOT EXISTS Transactions (
			uuid TEXT PRIMARY KEY NOT NULL,
			confirming_phase TEXT NOT NULL,
			kind TEXT NOT NULL,
			caller TEXT NOT NULL,
			receipt TEXT NOT NULL,
			input_handle BLOB,
			err TEXT,
			err_kind TEXT,
			timestamp INTEGER
		);
	`
}

// table CoprocessorKeys 只有一行，保存协处理器的密钥材料
func CreateCoprocessorKeyTable() string {
	return `
		CREATE TABLE IF NOT EXISTS CoprocessorKeys (
			id INTEGER PRIMARY KEY CHECK (id = 0),
			keys BLOB NOT NULL
		);
	`
}

// DB 包装 sqlite 连接。sqlite 只允许单写者，连接数限制为 1
type DB struct {
	db *sql.DB
}

// Open 打开/创建数据库并建表
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrapf(err, "create database dir %s", dir)
		}
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	conn.SetMaxOpenConns(1)

	d := &DB{db: conn}
	if err := d.init(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init(ctx context.Context) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"pragma", "PRAGMA journal_mode = WAL;"},
		{"Accounts", CreateAccountTable()},
		{"Global", CreateGlobalTable()},
		{"AccessGrants", CreateAccessGrantTable()},
		{"Ciphertexts", CreateCiphertextTable()},
		{"ConsumedInputs", CreateConsumedInputTable()},
		{"Transactions", CreateTransactionTable()},
		{"CoprocessorKeys", CreateCoprocessorKeyTable()},
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s.sql); err != nil {
			return errors.Wrapf(err, "initialize %s", s.name)
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
