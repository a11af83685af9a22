// 包 kms 是链下解密服务：校验用户签名的授权与访问控制，
// 然后将明文密封给会话公钥返回。服务本身不保存任何会话状态。
package kms

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/gateway"
	"github.com/CamberLoid/tzama/internal/handshake"
	"github.com/CamberLoid/tzama/internal/key"
	"github.com/CamberLoid/tzama/internal/metrics"
	"github.com/CamberLoid/tzama/internal/types"
)

// DefaultMaxGrantDuration 与客户端默认的授权有效期一致
const DefaultMaxGrantDuration = 30 * 24 * time.Hour

// ACL 是解密前需要查询的访问控制表
type ACL interface {
	IsGranted(h types.Handle, p types.Principal) bool
}

type Config struct {
	Domain           handshake.Domain
	MaxGrantDuration time.Duration
}

type Service struct {
	decrypter gateway.Decrypter
	acl       ACL
	cfg       Config
	now       func() time.Time
	log       *slog.Logger
	metrics   *metrics.DecryptMetrics
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option { return func(s *Service) { s.log = log } }

func WithMetrics(m *metrics.DecryptMetrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock 替换时间来源，测试中用来模拟授权过期
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(decrypter gateway.Decrypter, acl ACL, cfg Config, opts ...Option) *Service {
	if cfg.MaxGrantDuration <= 0 {
		cfg.MaxGrantDuration = DefaultMaxGrantDuration
	}
	s := &Service{decrypter: decrypter, acl: acl, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("component", "kms"))
	return s
}

func (s *Service) Domain() handshake.Domain { return s.cfg.Domain }

// UserDecrypt 实现 handshake.Transport，同时也是 HTTP /decrypt 的处理逻辑
func (s *Service) UserDecrypt(ctx context.Context, req *handshake.Request) (handshake.Response, error) {
	resp, err := s.userDecrypt(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(types.KindOf(err))
		s.log.Info("user decryption refused",
			slog.String("user", req.UserAddress.Hex()),
			slog.Int("handles", len(req.HandleContractPairs)),
			slog.String("reason", types.KindOf(err)),
			slog.Any("error", err))
	} else {
		s.log.Debug("user decryption served",
			slog.String("user", req.UserAddress.Hex()),
			slog.Int("handles", len(resp)))
	}
	s.metrics.ObserveRequest(outcome, len(resp))
	return resp, err
}

func (s *Service) userDecrypt(ctx context.Context, req *handshake.Request) (handshake.Response, error) {
	if err := s.checkWindow(req); err != nil {
		return nil, err
	}

	signer, err := handshake.RecoverSigner(s.cfg.Domain, req)
	if err != nil {
		return nil, unauthorized(err)
	}
	if signer != req.UserAddress {
		return nil, unauthorized(errors.Wrapf(types.ErrInvalidSignature, "grant signed by %s, not %s", signer.Hex(), req.UserAddress.Hex()))
	}

	pk, err := key.SessionPublicKeyFromBytes(req.PublicKey)
	if err != nil {
		return nil, errors.Wrap(types.ErrDecryptionUnauthorized, err.Error())
	}
	s.log.Debug("grant accepted",
		slog.String("user", signer.Hex()),
		slog.String("session_key", key.MarshalSessionPublicKey(pk)))

	scope := make(map[types.Principal]struct{}, len(req.ContractAddresses))
	for _, c := range req.ContractAddresses {
		scope[c] = struct{}{}
	}
	for _, p := range req.HandleContractPairs {
		if err := s.checkPair(p, req.UserAddress, scope); err != nil {
			return nil, err
		}
	}

	resp := make(handshake.Response, len(req.HandleContractPairs))
	for _, p := range req.HandleContractPairs {
		if _, ok := resp[p.Handle]; ok {
			continue
		}
		v, err := s.decrypter.Decrypt(ctx, p.Handle)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt handle %s", p.Handle)
		}
		sealed, err := key.Seal(pk, []byte(strconv.FormatUint(v, 10)))
		if err != nil {
			return nil, errors.Wrap(err, "seal cleartext")
		}
		resp[p.Handle] = sealed
	}
	return resp, nil
}

func (s *Service) checkWindow(req *handshake.Request) error {
	if req.DurationSeconds <= 0 {
		return errors.Wrap(types.ErrDecryptionUnauthorized, "grant duration must be positive")
	}
	// 按秒比较，避免换算成 time.Duration 时溢出
	if req.DurationSeconds > int64(s.cfg.MaxGrantDuration/time.Second) {
		return errors.Wrapf(types.ErrDecryptionUnauthorized, "grant duration %ds exceeds %s", req.DurationSeconds, s.cfg.MaxGrantDuration)
	}
	now := s.now().Unix()
	if now < req.StartTimestamp {
		return errors.Wrapf(types.ErrGrantExpired, "grant starts at %d, now %d", req.StartTimestamp, now)
	}
	if now > req.StartTimestamp+req.DurationSeconds {
		return errors.Wrapf(types.ErrGrantExpired, "grant expired at %d, now %d", req.StartTimestamp+req.DurationSeconds, now)
	}
	return nil
}

func (s *Service) checkPair(p types.HandleContractPair, user types.Principal, scope map[types.Principal]struct{}) error {
	if p.Handle.IsZero() {
		return errors.Wrap(types.ErrInvalidHandle, "zero handle is resolved by the client")
	}
	if _, ok := scope[p.Contract]; !ok {
		return errors.Wrapf(types.ErrDecryptionUnauthorized, "contract %s is not in the grant scope", p.Contract.Hex())
	}
	if p.Contract == user {
		return errors.Wrapf(types.ErrDecryptionUnauthorized, "user %s cannot act as contract", user.Hex())
	}
	if !s.acl.IsGranted(p.Handle, user) {
		return errors.Wrapf(types.ErrDecryptionUnauthorized, "handle %s is not granted to user %s", p.Handle, user.Hex())
	}
	if !s.acl.IsGranted(p.Handle, p.Contract) {
		return errors.Wrapf(types.ErrDecryptionUnauthorized, "handle %s is not granted to contract %s", p.Handle, p.Contract.Hex())
	}
	return nil
}

// unauthorized 对外报告为 DecryptionUnauthorized，同时保留 ErrInvalidSignature
func unauthorized(err error) error {
	return fmt.Errorf("%w: %w", types.ErrDecryptionUnauthorized, err)
}
