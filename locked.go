package dynbloom

import "sync"

// Set is the membership interface shared by Filter, ScalableFilter and
// DynamicFilter.
type Set interface {
	Add(data []byte) bool
	AddString(s string) bool
	Test(data []byte) bool
	TestString(s string) bool
	Count() uint64
}

var (
	_ Set = (*Filter)(nil)
	_ Set = (*ScalableFilter)(nil)
	_ Set = (*DynamicFilter)(nil)
	_ Set = (*Locked)(nil)
)

// Locked makes a Set safe for concurrent use with a read/write mutex: Add
// is exclusive, Test and Count are shared. It works for growable filters,
// whose Add may append a shard.
type Locked struct {
	mu  sync.RWMutex
	set Set
}

// NewLocked wraps s. The caller must not use s directly afterwards.
func NewLocked(s Set) *Locked {
	return &Locked{set: s}
}

// Add adds data under the write lock.
func (l *Locked) Add(data []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.Add(data)
}

// AddString adds a string under the write lock.
func (l *Locked) AddString(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set.AddString(s)
}

// Test checks data under the read lock.
func (l *Locked) Test(data []byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Test(data)
}

// TestString checks a string under the read lock.
func (l *Locked) TestString(s string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.TestString(s)
}

// Count returns the wrapped set's count under the read lock.
func (l *Locked) Count() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.set.Count()
}

// View calls fn with the wrapped set under the read lock. fn must not
// modify the set; use it for compound reads such as serialization.
func (l *Locked) View(fn func(Set)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.set)
}

// Update calls fn with the wrapped set under the write lock.
func (l *Locked) Update(fn func(Set)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.set)
}
