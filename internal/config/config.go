package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/CamberLoid/tzama/internal/types"
)

const (
	CoprocessorCKKS = "ckks"
	CoprocessorMock = "mock"

	ReadersCaller          = "caller"
	ReadersAdmins          = "admins"
	ReadersCallerAndAdmins = "caller+admins"
)

type LogConfig struct {
	Level string `toml:"Level"`
	File  string `toml:"File"`
	Env   string `toml:"Env"`
}

type Config struct {
	ListenAddress       string   `toml:"ListenAddress"`
	DataDir             string   `toml:"DataDir"`
	DatabaseFile        string   `toml:"DatabaseFile"`
	ChainID             int64    `toml:"ChainID"`
	LedgerAddress       string   `toml:"LedgerAddress"`
	KMSAddress          string   `toml:"KMSAddress"`
	Coprocessor         string   `toml:"Coprocessor"`
	TotalStakedReaders  string   `toml:"TotalStakedReaders"`
	Admins              []string `toml:"Admins"`
	MaxGrantDuration    string   `toml:"MaxGrantDuration"`
	DefaultFaucetAmount uint64   `toml:"DefaultFaucetAmount"`

	Log LogConfig `toml:"Log"`
}

// Default 返回本地开发用的配置
func Default() *Config {
	return &Config{
		ListenAddress:       "127.0.0.1:16001",
		DataDir:             "./tzama-data",
		DatabaseFile:        "server.db",
		ChainID:             31337,
		LedgerAddress:       "0x7a3a000000000000000000000000000000000001",
		KMSAddress:          "0x7a3a0000000000000000000000000000000000ff",
		Coprocessor:         CoprocessorCKKS,
		TotalStakedReaders:  ReadersCaller,
		Admins:              []string{},
		MaxGrantDuration:    "720h",
		DefaultFaucetAmount: 1000,
		Log:                 LogConfig{Level: "info"},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	if cfg.Admins == nil {
		cfg.Admins = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects malformed addresses, unknown modes and a zero chain id.
func (c *Config) Validate() error {
	if c.ChainID <= 0 {
		return fmt.Errorf("ChainID must be positive")
	}
	if _, err := types.ParsePrincipal(c.LedgerAddress); err != nil {
		return fmt.Errorf("LedgerAddress: %w", err)
	}
	if _, err := types.ParsePrincipal(c.KMSAddress); err != nil {
		return fmt.Errorf("KMSAddress: %w", err)
	}
	switch c.Coprocessor {
	case CoprocessorCKKS, CoprocessorMock:
	default:
		return fmt.Errorf("unknown Coprocessor %q", c.Coprocessor)
	}
	switch c.TotalStakedReaders {
	case ReadersCaller, ReadersAdmins, ReadersCallerAndAdmins:
	default:
		return fmt.Errorf("unknown TotalStakedReaders %q", c.TotalStakedReaders)
	}
	if _, err := c.AdminPrincipals(); err != nil {
		return err
	}
	if c.TotalStakedReaders != ReadersCaller && len(c.Admins) == 0 {
		return fmt.Errorf("TotalStakedReaders %q needs at least one admin", c.TotalStakedReaders)
	}
	if d, err := c.GrantDuration(); err != nil || d <= 0 {
		return fmt.Errorf("invalid MaxGrantDuration %q", c.MaxGrantDuration)
	}
	if c.DefaultFaucetAmount == 0 {
		return fmt.Errorf("DefaultFaucetAmount must be positive")
	}
	return nil
}

func (c *Config) Ledger() types.Principal {
	p, _ := types.ParsePrincipal(c.LedgerAddress)
	return p
}

func (c *Config) KMS() types.Principal {
	p, _ := types.ParsePrincipal(c.KMSAddress)
	return p
}

func (c *Config) AdminPrincipals() ([]types.Principal, error) {
	out := make([]types.Principal, 0, len(c.Admins))
	for _, a := range c.Admins {
		p, err := types.ParsePrincipal(a)
		if err != nil {
			return nil, fmt.Errorf("Admins: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Config) GrantDuration() (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(c.MaxGrantDuration))
}

// DatabasePath 为 DataDir 下的数据库文件，DatabaseFile 为绝对路径时直接使用
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.DatabaseFile) {
		return c.DatabaseFile
	}
	return filepath.Join(c.DataDir, c.DatabaseFile)
}
