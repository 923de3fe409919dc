package state

import "sync"

// ChatLocker hands out one mutex per chat id. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type ChatLocker struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

// NewChatLocker returns an empty ChatLocker.
func NewChatLocker() *ChatLocker {
	return &ChatLocker{locks: make(map[int64]*chatLock)}
}

// Lock blocks until the caller owns chatID and returns the matching unlock func.
func (l *ChatLocker) Lock(chatID int64) func() {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
}

// Active reports how many chats currently hold or wait on a lock.
func (l *ChatLocker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
