package studio

import (
	"servos/define"
	"servos/playback"
)

// Start 从 0 开始播放并启动时钟，返回会话 ID
func (s *Studio) Start() (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	session := s.scheduler.Start()
	if err := s.runner.Start(s.scheduler.Quantum()); err != nil {
		s.scheduler.Stop()
		return "", err
	}
	return session, nil
}

func (s *Studio) Pause() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.scheduler.Pause(); err != nil {
		return err
	}
	s.runner.Stop()
	return nil
}

func (s *Studio) Resume() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.scheduler.Resume(); err != nil {
		return err
	}
	return s.runner.Start(s.scheduler.Quantum())
}

func (s *Studio) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.scheduler.Stop()
	s.runner.Stop()
}

func (s *Studio) Seek(t float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.scheduler.Seek(t)
}

func (s *Studio) PlaybackStatus() playback.Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.scheduler.Status()
}

// Settings 播放参数修改，nil 字段保持不变
type Settings struct {
	Duration   *float64 `json:"duration"`
	Resolution *float64 `json:"resolution"`
	StepScale  *float64 `json:"stepScale"`
	MissPolicy *string  `json:"missPolicy"`
}

// ApplySettings 修改播放参数；时长变化会按比例缩放全部曲线，分辨率变化会让全部缓存失效
func (s *Studio) ApplySettings(in Settings) (playback.Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var policy define.MissPolicy
	if in.MissPolicy != nil {
		policy = define.MissPolicyFromString(*in.MissPolicy)
		if policy == define.MISS_POLICY_UNKNOWN {
			return s.scheduler.Status(), errInvalidf("未知的缓存缺失策略 %q", *in.MissPolicy)
		}
	}

	if in.Duration != nil && *in.Duration != s.scheduler.Duration() {
		if err := s.scheduler.SetDuration(*in.Duration); err != nil {
			return s.scheduler.Status(), err
		}
		s.logger.Infof("⏱️ 时间轴时长调整为 %.2fs", *in.Duration)
		s.editor.Touch(define.ChangeLoad, 0, map[string]any{"duration": *in.Duration})
	}
	if in.Resolution != nil && *in.Resolution != s.scheduler.Resolution() {
		if err := s.scheduler.SetResolution(*in.Resolution); err != nil {
			return s.scheduler.Status(), err
		}
		s.logger.Infof("📐 分辨率调整为 %.0f/s", *in.Resolution)
		s.editor.Touch(define.ChangeLoad, 0, map[string]any{"resolution": *in.Resolution})
		if s.runner.IsRunning() {
			if err := s.runner.Start(s.scheduler.Quantum()); err != nil {
				return s.scheduler.Status(), err
			}
		}
	}
	if in.StepScale != nil {
		if err := s.scheduler.SetStepScale(*in.StepScale); err != nil {
			return s.scheduler.Status(), err
		}
	}
	if policy != define.MISS_POLICY_UNKNOWN {
		s.scheduler.SetMissPolicy(policy)
	}
	return s.scheduler.Status(), nil
}
