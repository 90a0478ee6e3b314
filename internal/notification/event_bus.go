package notification

import (
	"context"
	"sync"
)

// EventBusConfig 控制事件总线行为
type EventBusConfig struct {
	BufferSize int
}

// EventBus 进程内事件总线，按合同ID订阅
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	seq    uint64
	buffer int
}

// NewEventBus 创建事件总线
func NewEventBus(cfg *EventBusConfig) *EventBus {
	buffer := 16
	if cfg != nil && cfg.BufferSize > 0 {
		buffer = cfg.BufferSize
	}
	return &EventBus{
		subs:   make(map[string]map[uint64]chan Event),
		buffer: buffer,
	}
}

// Notify 发布事件，实现 Notifier
func (b *EventBus) Notify(_ context.Context, evt Event) error {
	b.Publish(evt)
	return nil
}

// Publish 发布事件
// 接收方处理慢时丢弃事件，发布方不阻塞
func (b *EventBus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[evt.ContractID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe 订阅指定合同的事件
func (b *EventBus) Subscribe(contractID string) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.seq++
	id := b.seq
	if _, ok := b.subs[contractID]; !ok {
		b.subs[contractID] = make(map[uint64]chan Event)
	}
	b.subs[contractID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.removeListener(contractID, id) })
	}
	return ch, cancel
}

// SubscriberCount 返回指定合同的订阅数
func (b *EventBus) SubscriberCount(contractID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[contractID])
}

func (b *EventBus) removeListener(contractID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if listeners, ok := b.subs[contractID]; ok {
		if ch, exists := listeners[id]; exists {
			delete(listeners, id)
			close(ch)
		}
		if len(listeners) == 0 {
			delete(b.subs, contractID)
		}
	}
}
