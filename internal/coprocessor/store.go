package coprocessor

import (
	"fmt"
	"sync"

	"github.com/CamberLoid/tzama/internal/types"
)

// Store 保存句柄到序列化密文的映射。
// 生产环境使用 internal/db 的 sqlite 实现，测试使用 MemStore。
type Store interface {
	PutCiphertext(h types.Handle, ct []byte) error
	// GetCiphertext 在句柄不存在时返回 types.ErrUnknownHandle
	GetCiphertext(h types.Handle) ([]byte, error)
	// ConsumeInput 标记输入已被使用，重复使用时返回 types.ErrInvalidProof
	ConsumeInput(h types.Handle) error
}

type MemStore struct {
	mu       sync.RWMutex
	cts      map[types.Handle][]byte
	consumed map[types.Handle]struct{}
}

func NewMemStore() *MemStore {
	return &MemStore{
		cts:      make(map[types.Handle][]byte),
		consumed: make(map[types.Handle]struct{}),
	}
}

func (s *MemStore) PutCiphertext(h types.Handle, ct []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cts[h] = append([]byte(nil), ct...)
	return nil
}

func (s *MemStore) GetCiphertext(h types.Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.cts[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownHandle, h)
	}
	return ct, nil
}

func (s *MemStore) ConsumeInput(h types.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, used := s.consumed[h]; used {
		return fmt.Errorf("%w: input already consumed", types.ErrInvalidProof)
	}
	s.consumed[h] = struct{}{}
	return nil
}
