package analysis

import "sync"

// KeyedLock holds at most one owner per key. Acquisition never blocks: a
// second caller for a held key is refused.
type KeyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: map[string]struct{}{}}
}

// TryLock claims key and returns its release func, or false if key is held.
func (l *KeyedLock) TryLock(key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}

func (l *KeyedLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
