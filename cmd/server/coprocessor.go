package main

import (
	"context"
	"log/slog"

	"github.com/CamberLoid/tzama/internal/config"
	"github.com/CamberLoid/tzama/internal/coprocessor"
	"github.com/CamberLoid/tzama/internal/db"
	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/gateway/mock"
	"github.com/CamberLoid/tzama/internal/metrics"
	"github.com/CamberLoid/tzama/internal/types"
)

// newCoprocessor 按配置创建协处理器。CKKS 密钥首次启动时生成并写入数据库
func newCoprocessor(ctx context.Context, cfg *config.Config, store *db.DB, logger *slog.Logger) (gateway.Coprocessor, types.Principal, error) {
	if cfg.Coprocessor == config.CoprocessorMock {
		// mock 的明文只在内存中，重启后已保存的句柄无法再解密
		logger.Warn("using the in-memory mock coprocessor")
		g := mock.New()
		return g, g.Signer(), nil
	}

	raw, err := store.LoadCoprocessorKeys(ctx)
	if err != nil {
		return nil, types.Principal{}, err
	}
	var keys *coprocessor.Keys
	if raw == nil {
		if keys, err = coprocessor.GenerateKeys(); err != nil {
			return nil, types.Principal{}, err
		}
		data, err := keys.MarshalBinary()
		if err != nil {
			return nil, types.Principal{}, err
		}
		if err := store.SaveCoprocessorKeys(ctx, data); err != nil {
			return nil, types.Principal{}, err
		}
		logger.Info("generated coprocessor keys", slog.String("signer", keys.SignerAddress().Hex()))
	} else if keys, err = coprocessor.UnmarshalKeys(raw); err != nil {
		return nil, types.Principal{}, err
	}

	cp := coprocessor.New(keys, store)
	precision := cp.Precision()
	metrics.Coprocessor().SetPrecision(precision)
	logger.Info("coprocessor ready",
		slog.String("signer", cp.Signer().Hex()),
		slog.Float64("precision_error", precision))
	return cp, cp.Signer(), nil
}
