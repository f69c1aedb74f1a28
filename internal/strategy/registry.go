package strategy

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"sync"
)

const magicModulus = 1 << 31

// Registry assigns each strategy a stable magic number so its orders and
// positions can be attributed at the broker without any local state. The
// number is derived from the strategy name, so restarts and multiple bot
// instances agree on it; hash collisions are resolved deterministically by
// probing upward in registration order.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]int
	byMagic map[int]string
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]int),
		byMagic: make(map[int]string),
	}
}

// Register assigns (or returns the already assigned) magic number for the
// strategy name.
func (r *Registry) Register(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if magic, ok := r.byName[name]; ok {
		return magic
	}
	magic := hashMagic(name)
	for {
		owner, taken := r.byMagic[magic]
		if !taken {
			break
		}
		if owner == name {
			break
		}
		magic = (magic + 1) % magicModulus
		if magic == 0 {
			magic = 1
		}
	}
	r.byName[name] = magic
	r.byMagic[magic] = name
	return magic
}

// MagicFor returns the magic number registered for a strategy name.
func (r *Registry) MagicFor(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	magic, ok := r.byName[name]
	return magic, ok
}

// NameFor is the reverse lookup: which strategy owns a magic number.
func (r *Registry) NameFor(magic int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byMagic[magic]
	return name, ok
}

// hashMagic maps a name onto a positive 31-bit number via the first 8 hex
// digits of its MD5. Stability matters here, not cryptographic strength.
func hashMagic(name string) int {
	sum := md5.Sum([]byte(name))
	v, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	magic := int(v % magicModulus)
	if magic == 0 {
		magic = 1
	}
	return magic
}
