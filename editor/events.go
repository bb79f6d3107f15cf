package editor

import (
	"sync"

	"servos/define"
)

// ChangeEvent 一次成功的结构变更
type ChangeEvent struct {
	Kind      define.ChangeKind `json:"kind"`
	ChannelID int               `json:"channelId"`
	Details   map[string]any    `json:"details,omitempty"`
}

// Bus 同步分发变更事件，订阅者按订阅顺序被调用
type Bus struct {
	mutex  sync.RWMutex
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(ChangeEvent)
}

func NewBus() *Bus { return &Bus{} }

// Subscribe 注册回调，返回取消订阅函数
func (b *Bus) Subscribe(fn func(ChangeEvent)) func() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit 在调用方的协程中依次通知订阅者
func (b *Bus) Emit(ev ChangeEvent) {
	b.mutex.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mutex.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
