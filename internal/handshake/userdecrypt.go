package handshake

import (
	"context"
	"time"

	"github.com/CamberLoid/tzama/internal/types"
)

// DefaultGrantDuration 是 UserDecrypt 使用的授权有效期
const DefaultGrantDuration = 10 * 24 * time.Hour

// UserDecrypt 跑完整的一次会话。授权范围取 pairs 中出现的全部合约。
func UserDecrypt(ctx context.Context, transport Transport, signer Signer, domain Domain, pairs []types.HandleContractPair, duration time.Duration) (map[types.Handle]uint64, error) {
	result := make(map[types.Handle]uint64, len(pairs))
	var (
		pending []types.HandleContractPair
		scope   []types.Principal
		seen    = make(map[types.Principal]struct{})
	)
	for _, p := range pairs {
		if p.Handle.IsZero() {
			result[p.Handle] = 0
			continue
		}
		pending = append(pending, p)
		if _, ok := seen[p.Contract]; !ok {
			seen[p.Contract] = struct{}{}
			scope = append(scope, p.Contract)
		}
	}
	if len(pending) == 0 {
		return result, nil
	}
	if duration <= 0 {
		duration = DefaultGrantDuration
	}

	session := NewSession(domain)
	if err := session.GenerateKeypair(); err != nil {
		return nil, err
	}
	if _, err := session.Sign(signer, scope, time.Now(), duration); err != nil {
		return nil, err
	}
	values, err := session.Request(ctx, transport, pending)
	if err != nil {
		return nil, err
	}
	for h, v := range values {
		result[h] = v
	}
	return result, nil
}
