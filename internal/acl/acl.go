// 包 acl 记录哪些主体可以解密哪个句柄。
//
// 授权只增不减：被替换的句柄保留原有授权，不存在撤销，
// 因此 IsGranted 读取时无需加锁。
package acl

import (
	"sync"
	"sync/atomic"

	"github.com/CamberLoid/tzama/internal/types"
)

// Entry 是一条 (句柄, 主体) 授权
type Entry struct {
	Handle    types.Handle    `json:"handle"`
	Principal types.Principal `json:"principal"`
}

type Registry struct {
	grants sync.Map // Entry -> struct{}
	size   atomic.Int64
}

func New() *Registry {
	return &Registry{}
}

// Grant 是幂等的。零句柄无需授权，直接忽略
func (r *Registry) Grant(h types.Handle, p types.Principal) {
	if h.IsZero() {
		return
	}
	if _, loaded := r.grants.LoadOrStore(Entry{Handle: h, Principal: p}, struct{}{}); !loaded {
		r.size.Add(1)
	}
}

func (r *Registry) GrantAll(entries ...Entry) {
	for _, e := range entries {
		r.Grant(e.Handle, e.Principal)
	}
}

func (r *Registry) IsGranted(h types.Handle, p types.Principal) bool {
	_, ok := r.grants.Load(Entry{Handle: h, Principal: p})
	return ok
}

// Len 返回不同授权的数量
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Entries 返回无序快照
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, r.Len())
	r.grants.Range(func(k, _ any) bool {
		out = append(out, k.(Entry))
		return true
	})
	return out
}
