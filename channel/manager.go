package channel

import (
	"math"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"servos/curve"
	"servos/define"
)

// Manager 管理通道实例，ID 递增分配、不复用
type Manager struct {
	channels map[int]*Channel
	nextID   int
	duration float64
	mutex    sync.RWMutex
}

func NewManager(duration float64) *Manager {
	return &Manager{channels: make(map[int]*Channel), nextID: 1, duration: duration}
}

// Add 新增一个默认通道，name 为空时使用 "Servo N"
func (m *Manager) Add(name string) (*Channel, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.addLocked(name)
}

func (m *Manager) addLocked(name string) (*Channel, error) {
	if len(m.channels) >= define.MaxChannelCount {
		return nil, errors.Wrapf(ErrLimit, "最多 %d 个通道", define.MaxChannelCount)
	}
	ch, err := New(m.nextID, name, m.duration)
	if err != nil {
		return nil, err
	}
	m.channels[ch.ID] = ch
	m.nextID++
	return ch, nil
}

// Put 以指定 ID 放入通道（载入工程时使用）
func (m *Manager) Put(ch *Channel) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.channels[ch.ID]; exists {
		return errors.Errorf("通道 %d 已存在", ch.ID)
	}
	if len(m.channels) >= define.MaxChannelCount {
		return errors.Wrapf(ErrLimit, "最多 %d 个通道", define.MaxChannelCount)
	}
	m.channels[ch.ID] = ch
	if ch.ID >= m.nextID {
		m.nextID = ch.ID + 1
	}
	return nil
}

func (m *Manager) Get(id int) (*Channel, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ch, exists := m.channels[id]
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "通道 %d", id)
	}
	return ch, nil
}

// List 按 ID 升序返回全部通道
func (m *Manager) List() []*Channel {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.listLocked()
}

func (m *Manager) listLocked() []*Channel {
	list := lo.Values(m.channels)
	slices.SortFunc(list, func(a, b *Channel) int { return a.ID - b.ID })
	return list
}

func (m *Manager) IDs() []int {
	return lo.Map(m.List(), func(ch *Channel, _ int) int { return ch.ID })
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.channels)
}

// Remove 删除通道，至少保留一个
func (m *Manager) Remove(id int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.channels[id]; !exists {
		return errors.Wrapf(ErrNotFound, "通道 %d", id)
	}
	if len(m.channels) <= define.MinChannelCount {
		return errors.Wrap(ErrLimit, "至少保留一个通道")
	}
	delete(m.channels, id)
	return nil
}

// SetCount 调整通道数量：增加时追加默认通道，减少时从 ID 最大的通道开始删除
func (m *Manager) SetCount(n int) (added []int, removed []int, err error) {
	if n < define.MinChannelCount || n > define.MaxChannelCount {
		return nil, nil, errors.Wrapf(ErrLimit, "通道数量 %d 不在 [%d, %d] 内", n, define.MinChannelCount, define.MaxChannelCount)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for len(m.channels) < n {
		ch, err := m.addLocked("")
		if err != nil {
			return added, removed, err
		}
		added = append(added, ch.ID)
	}
	if extra := len(m.channels) - n; extra > 0 {
		list := m.listLocked()
		for _, ch := range list[len(list)-extra:] {
			delete(m.channels, ch.ID)
			removed = append(removed, ch.ID)
		}
	}
	return added, removed, nil
}

// Reset 清空全部通道并重新创建 count 个默认通道，ID 从 1 开始
func (m *Manager) Reset(count int) error {
	if count < define.MinChannelCount || count > define.MaxChannelCount {
		return errors.Wrapf(ErrLimit, "通道数量 %d 不在 [%d, %d] 内", count, define.MinChannelCount, define.MaxChannelCount)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.channels = make(map[int]*Channel)
	m.nextID = 1
	for i := 0; i < count; i++ {
		if _, err := m.addLocked(""); err != nil {
			return err
		}
	}
	return nil
}

// Clear 清空全部通道，仅供载入工程前使用
func (m *Manager) Clear(nextID int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.channels = make(map[int]*Channel)
	m.nextID = max(nextID, 1)
}

func (m *Manager) NextID() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.nextID
}

func (m *Manager) Duration() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.duration
}

// SetDuration 修改时间轴长度，所有曲线按比例缩放
func (m *Manager) SetDuration(d float64) error {
	if !(d > 0) || math.IsInf(d, 0) {
		return errors.Wrapf(curve.ErrOutOfRange, "时长必须为正数，收到 %v", d)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 先全部检查再缩放，任何一条曲线不接受时所有曲线保持原样
	for _, ch := range m.channels {
		if err := ch.Curve.CheckRescale(d); err != nil {
			return errors.Wrapf(err, "通道 %d", ch.ID)
		}
	}
	for _, ch := range m.channels {
		if err := ch.Curve.Rescale(d); err != nil {
			return err
		}
	}
	m.duration = d
	return nil
}
