package studio

import (
	"strings"

	"github.com/samber/lo"

	"servos/channel"
	"servos/curve"
	"servos/define"
)

type KeyframeInfo struct {
	ID    curve.KeyframeID `json:"id"`
	Time  float64          `json:"time"`
	Value float64          `json:"value"`
}

// ChannelInfo 通道的只读视图，包含关键帧句柄
type ChannelInfo struct {
	ID         int                 `json:"id"`
	Name       string              `json:"name"`
	Enabled    bool                `json:"enabled"`
	Loop       bool                `json:"loop"`
	LimitMin   float64             `json:"limitMin"`
	LimitMax   float64             `json:"limitMax"`
	Baseline   float64             `json:"baseline"`
	Duration   float64             `json:"duration"`
	Keyframes  []KeyframeInfo      `json:"keyframes"`
	Segments   []curve.SegmentData `json:"segments"`
	CacheValid bool                `json:"cacheValid"`
}

func (s *Studio) info(ch *channel.Channel) ChannelInfo {
	data := ch.Curve.Data()
	return ChannelInfo{
		ID:       ch.ID,
		Name:     ch.Name,
		Enabled:  ch.Enabled,
		Loop:     ch.Loop,
		LimitMin: ch.Limits.Min,
		LimitMax: ch.Limits.Max,
		Baseline: ch.Curve.Baseline(),
		Duration: ch.Curve.Duration(),
		Keyframes: lo.Map(ch.Curve.Keyframes(), func(a curve.Anchor, _ int) KeyframeInfo {
			return KeyframeInfo{ID: a.ID, Time: a.Time, Value: a.Value}
		}),
		Segments:   data.Segments,
		CacheValid: s.scheduler.CacheValid(ch.ID),
	}
}

// ListChannels 按 ID 升序返回全部通道
func (s *Studio) ListChannels() []ChannelInfo {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return lo.Map(s.channels.List(), func(ch *channel.Channel, _ int) ChannelInfo { return s.info(ch) })
}

func (s *Studio) Channel(id int) (ChannelInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Get(id)
	if err != nil {
		return ChannelInfo{}, err
	}
	return s.info(ch), nil
}

// AddChannel 新增通道，name 为空时使用默认名称
func (s *Studio) AddChannel(name string) (ChannelInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Add(strings.TrimSpace(name))
	if err != nil {
		return ChannelInfo{}, err
	}
	s.logger.Infof("➕ 新增通道 %d (%s)", ch.ID, ch.Name)
	s.editor.Touch(define.ChangeChannel, ch.ID, map[string]any{"action": "add"})
	return s.info(ch), nil
}

// RemoveChannel 删除通道，最后一个通道不能删除
func (s *Studio) RemoveChannel(id int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.channels.Remove(id); err != nil {
		return err
	}
	s.scheduler.Forget(id)
	s.logger.Infof("➖ 删除通道 %d", id)
	s.editor.Touch(define.ChangeChannel, id, map[string]any{"action": "remove"})
	return nil
}

// SetChannelCount 调整通道数量，返回新增和删除的通道 ID
func (s *Studio) SetChannelCount(n int) (added, removed []int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	added, removed, err = s.channels.SetCount(n)
	for _, id := range removed {
		s.scheduler.Forget(id)
		s.editor.Touch(define.ChangeChannel, id, map[string]any{"action": "remove"})
	}
	for _, id := range added {
		s.editor.Touch(define.ChangeChannel, id, map[string]any{"action": "add"})
	}
	if err != nil {
		return added, removed, err
	}
	s.logger.Infof("🔢 通道数量调整为 %d (新增 %v, 删除 %v)", n, added, removed)
	return added, removed, nil
}

// ChannelUpdate 通道属性修改，nil 字段保持不变
type ChannelUpdate struct {
	Name     *string  `json:"name"`
	Enabled  *bool    `json:"enabled"`
	Loop     *bool    `json:"loop"`
	LimitMin *float64 `json:"limitMin"`
	LimitMax *float64 `json:"limitMax"`
}

// UpdateChannel 修改通道名称、播放开关和上下限，校验失败时不做任何修改
func (s *Studio) UpdateChannel(id int, u ChannelUpdate) (ChannelInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Get(id)
	if err != nil {
		return ChannelInfo{}, err
	}

	limits := ch.Limits
	if u.LimitMin != nil {
		limits.Min = *u.LimitMin
	}
	if u.LimitMax != nil {
		limits.Max = *u.LimitMax
	}
	if err := limits.Validate(); err != nil {
		return ChannelInfo{}, err
	}

	ch.Limits = limits
	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); name != "" {
			ch.Name = name
		} else {
			ch.Name = channel.DefaultName(ch.ID)
		}
	}
	if u.Enabled != nil {
		ch.Enabled = *u.Enabled
	}
	if u.Loop != nil {
		ch.Loop = *u.Loop
	}
	s.editor.Touch(define.ChangeChannel, id, map[string]any{"action": "update"})
	return s.info(ch), nil
}
