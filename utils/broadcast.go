package utils

import "sync"

// Broadcaster 将事件同步分发给所有订阅者，在调用 Emit 的 goroutine 上执行
type Broadcaster[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(T)
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{handlers: make(map[uint64]func(T))}
}

// Subscribe 注册处理函数，返回的函数用于取消订阅，可重复调用
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster[T]) Emit(v T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(v)
	}
}
