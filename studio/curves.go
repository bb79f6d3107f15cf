package studio

import (
	"github.com/pkg/errors"

	"servos/curve"
	"servos/define"
	"servos/editor"
)

func (s *Studio) InsertKeyframe(channelID int, t, v float64) (curve.KeyframeID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.InsertKeyframe(channelID, t, v)
}

func (s *Studio) RemoveKeyframe(channelID int, id curve.KeyframeID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.RemoveKeyframe(channelID, id)
}

func (s *Studio) MoveKeyframe(channelID int, id curve.KeyframeID, t, v float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.MoveKeyframe(channelID, id, t, v)
}

func (s *Studio) SetSegmentControls(channelID, index int, c1, c2 curve.ControlOffset) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.SetSegmentControls(channelID, index, c1, c2)
}

func (s *Studio) SetBaseline(channelID int, v float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.SetBaseline(channelID, v)
}

func (s *Studio) InsertKeyframeAt(channelID int, vp editor.Viewport, x, y float64) (curve.KeyframeID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.InsertKeyframeAt(channelID, vp, x, y)
}

func (s *Studio) MoveKeyframeTo(channelID int, id curve.KeyframeID, vp editor.Viewport, x, y float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.MoveKeyframeTo(channelID, id, vp, x, y)
}

func (s *Studio) HitTestSegment(channelID int, vp editor.Viewport, x, y, tolerance float64) (int, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.HitTestSegment(channelID, vp, x, y, tolerance)
}

// Viewport 当前时长下的默认视口
func (s *Studio) Viewport() editor.Viewport {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return editor.DefaultViewport(s.channels.Duration())
}

// CurveData 导出通道曲线的持久化形式
func (s *Studio) CurveData(channelID int) (curve.Data, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Get(channelID)
	if err != nil {
		return curve.Data{}, err
	}
	return ch.Curve.Data(), nil
}

// ReplaceCurve 用持久化形式整体替换通道曲线，时长必须与时间轴一致
func (s *Studio) ReplaceCurve(channelID int, data curve.Data) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Get(channelID)
	if err != nil {
		return err
	}
	if data.Duration != s.channels.Duration() {
		return errors.Wrapf(curve.ErrCorruptData, "曲线时长 %v 与时间轴 %v 不一致", data.Duration, s.channels.Duration())
	}
	c, err := curve.Load(data)
	if err != nil {
		return err
	}
	ch.Curve = c
	s.editor.Touch(define.ChangeLoad, channelID, map[string]any{"keyframes": c.KeyframeCount()})
	return nil
}

// Samples 在 [0, duration] 上等间隔采样 n 个点，用于预览
func (s *Studio) Samples(channelID, n int) ([]float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ch, err := s.channels.Get(channelID)
	if err != nil {
		return nil, err
	}
	return ch.Curve.SampleTable(n), nil
}
