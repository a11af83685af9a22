// 包 handshake 实现客户端的解密握手：
// 生成一次性密钥对，签名授权，请求解密服务，再用会话私钥打开结果。
package handshake

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/CamberLoid/tzama/internal/key"
	"github.com/CamberLoid/tzama/internal/types"
)

type State int

const (
	Idle State = iota
	KeyGenerated
	RequestSigned
	AwaitingResult
	Decrypted
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KeyGenerated:
		return "key-generated"
	case RequestSigned:
		return "request-signed"
	case AwaitingResult:
		return "awaiting-result"
	case Decrypted:
		return "decrypted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 为真时会话不再接受任何转移
func (s State) Terminal() bool { return s == Decrypted || s == Failed }

// Session 是一次解密会话，不可复用
type Session struct {
	ID uuid.UUID

	mu     sync.Mutex
	state  State
	domain Domain
	keys   *key.SessionKeyPair
	grant  *Grant
	result map[types.Handle]uint64
	err    error
}

func NewSession(domain Domain) *Session {
	return &Session{ID: uuid.New(), domain: domain}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err 返回导致 Failed 的错误
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Grant 返回已签名的授权，签名前为 nil
func (s *Session) Grant() *Grant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grant
}

// Result 返回解密结果的副本
func (s *Session) Result() map[types.Handle]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyResult(s.result)
}

func (s *Session) expect(want State) error {
	if s.state != want {
		return errors.Wrapf(types.ErrInvalidState, "session %s is %s, want %s", s.ID, s.state, want)
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.state = Failed
	s.err = err
	s.keys.Wipe()
	return err
}

func (s *Session) finish(result map[types.Handle]uint64) map[types.Handle]uint64 {
	s.state = Decrypted
	s.result = result
	s.keys.Wipe()
	return copyResult(result)
}

// GenerateKeypair: Idle -> KeyGenerated
func (s *Session) GenerateKeypair() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(Idle); err != nil {
		return err
	}
	kp, err := key.GenerateSessionKeyPair()
	if err != nil {
		s.state = Failed
		s.err = err
		return err
	}
	s.keys = kp
	s.state = KeyGenerated
	return nil
}

// Sign: KeyGenerated -> RequestSigned
// 参数错误不改变状态，签名者拒绝签名则会话失败
func (s *Session) Sign(signer Signer, scope []types.Principal, start time.Time, duration time.Duration) (*Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect(KeyGenerated); err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return nil, errors.New("grant scope is empty")
	}
	secs := int64(duration / time.Second)
	if secs <= 0 {
		return nil, errors.Errorf("grant duration %s is shorter than one second", duration)
	}

	grant := &Grant{
		PublicKey:       append([]byte(nil), s.keys.PublicKey[:]...),
		Scope:           append([]types.Principal(nil), scope...),
		StartTimestamp:  start.Unix(),
		DurationSeconds: secs,
		Signer:          signer.Address(),
	}
	hash, err := GrantHash(s.domain, grant.PublicKey, grant.Scope, grant.StartTimestamp, grant.DurationSeconds)
	if err != nil {
		return nil, s.fail(err)
	}
	grant.Signature, err = signer.SignTypedDataHash(hash)
	if err != nil {
		return nil, s.fail(errors.Wrap(err, "sign decryption grant"))
	}
	s.grant = grant
	s.state = RequestSigned
	return grant, nil
}

// Request: RequestSigned -> AwaitingResult -> Decrypted | Failed
// 零句柄在本地解析为 0；没有剩余句柄时不访问解密服务。
// 等待解密服务期间不持有锁，AwaitingResult 阻止重入。
func (s *Session) Request(ctx context.Context, transport Transport, pairs []types.HandleContractPair) (map[types.Handle]uint64, error) {
	s.mu.Lock()
	if err := s.expect(RequestSigned); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	result := make(map[types.Handle]uint64, len(pairs))
	pending := make([]types.HandleContractPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Handle.IsZero() {
			result[p.Handle] = 0
			continue
		}
		pending = append(pending, p)
	}
	if len(pending) == 0 {
		defer s.mu.Unlock()
		return s.finish(result), nil
	}

	s.state = AwaitingResult
	req := s.grant.request(pending)
	s.mu.Unlock()

	sealed, err := transport.UserDecrypt(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return nil, s.fail(classify(err))
	}
	for _, p := range pending {
		box, ok := sealed[p.Handle]
		if !ok {
			return nil, s.fail(errors.Wrapf(types.ErrTransportFailure, "response is missing handle %s", p.Handle))
		}
		msg, err := s.keys.Open(box)
		if err != nil {
			return nil, s.fail(errors.Wrapf(types.ErrTransportFailure, "open handle %s: %v", p.Handle, err))
		}
		v, err := strconv.ParseUint(string(msg), 10, 64)
		if err != nil {
			return nil, s.fail(errors.Wrapf(types.ErrTransportFailure, "parse handle %s: %v", p.Handle, err))
		}
		result[p.Handle] = v
	}
	return s.finish(result), nil
}

// classify 保留可识别的错误类别，其他错误一律视为传输失败
func classify(err error) error {
	if types.KindOf(err) != "" {
		return err
	}
	return errors.Wrap(types.ErrTransportFailure, err.Error())
}

func copyResult(in map[types.Handle]uint64) map[types.Handle]uint64 {
	if in == nil {
		return nil
	}
	out := make(map[types.Handle]uint64, len(in))
	for h, v := range in {
		out[h] = v
	}
	return out
}
