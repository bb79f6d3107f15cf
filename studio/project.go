package studio

import (
	"github.com/pkg/errors"

	"servos/curve"
	"servos/define"
	"servos/store"
)

// ErrNoStore 未配置工程文件时保存或载入
var ErrNoStore = errors.New("未配置工程文件")

func errInvalidf(format string, args ...any) error {
	return errors.Wrapf(curve.ErrOutOfRange, format, args...)
}

// Snapshot 导出当前工程
func (s *Studio) Snapshot() store.Project {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return store.NewProject(s.channels.List(), s.scheduler.Duration(), s.scheduler.Resolution(), s.channels.NextID())
}

// Restore 载入工程，校验失败时当前状态保持不变。载入会停止播放。
func (s *Studio) Restore(p store.Project) error {
	channels, err := p.Build()
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scheduler.Stop()
	s.runner.Stop()
	for _, id := range s.channels.IDs() {
		s.scheduler.Forget(id)
	}

	s.channels.Clear(p.NextID)
	for _, ch := range channels {
		if err := s.channels.Put(ch); err != nil {
			return err
		}
	}
	if err := s.scheduler.SetDuration(p.Duration); err != nil {
		return err
	}
	if err := s.scheduler.SetResolution(p.Resolution); err != nil {
		return err
	}

	s.logger.Infof("📂 工程已载入: %d 个通道, 时长 %.2fs, 分辨率 %.0f/s", len(channels), p.Duration, p.Resolution)
	s.editor.Touch(define.ChangeLoad, 0, map[string]any{"channels": len(channels)})
	return nil
}

// NewProject 丢弃当前工程，创建 count 个默认通道，时间轴参数保持不变
func (s *Studio) NewProject(count int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.scheduler.Stop()
	s.runner.Stop()
	for _, id := range s.channels.IDs() {
		s.scheduler.Forget(id)
	}
	if err := s.channels.Reset(count); err != nil {
		return err
	}
	s.logger.Infof("🆕 新建工程: %d 个通道", count)
	s.editor.Touch(define.ChangeLoad, 0, map[string]any{"channels": count})
	return nil
}

// Save 立即把工程写入文件
func (s *Studio) Save() error {
	if s.store == nil {
		return ErrNoStore
	}
	if s.saver != nil {
		return s.saver.SaveNow()
	}
	return s.store.Save(s.Snapshot())
}

// Load 从工程文件载入
func (s *Studio) Load() error {
	if s.store == nil {
		return ErrNoStore
	}
	p, err := s.store.Load()
	if err != nil {
		return err
	}
	return s.Restore(p)
}
