package studio

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"servos/communication"
	"servos/config"
	"servos/define"
	"servos/playback"
	"servos/store"
)

// OpenTransports 按配置创建全部输出，任何一个失败都会关闭已创建的输出
func OpenTransports(cfgs []config.TransportConfig, logger *zap.SugaredLogger) (*communication.Fanout, error) {
	targets := make([]*communication.Async, 0, len(cfgs))
	for _, tc := range cfgs {
		sender, err := communication.CreateTransport(tc.Type, tc.Params, logger)
		if err != nil {
			for _, t := range targets {
				err = multierr.Append(err, t.Close())
			}
			return nil, fmt.Errorf("创建输出 %s 失败：%w", tc.Type, err)
		}
		logger.Infof("🔌 输出已就绪: %s", sender.Name())
		targets = append(targets, communication.NewAsync(sender, tc.QueueSize, time.Duration(tc.TimeoutMs)*time.Millisecond, logger))
	}
	return communication.NewFanout(targets...), nil
}

// FromConfig 按配置创建 Studio：打开输出，若工程文件存在则载入
func FromConfig(cfg *config.Config, logger *zap.SugaredLogger) (*Studio, error) {
	transports, err := OpenTransports(cfg.Transports, logger)
	if err != nil {
		return nil, err
	}

	var autoSave time.Duration
	if cfg.Project.AutoSave {
		autoSave = time.Duration(cfg.Project.AutoSaveDelayMs) * time.Millisecond
	}
	s, err := New(Options{
		Playback: playback.Options{
			Duration:   cfg.Playback.Duration,
			Resolution: cfg.Playback.Resolution,
			StepScale:  cfg.Playback.StepScale,
			MissPolicy: define.MissPolicyFromString(cfg.Playback.MissPolicy),
		},
		LimitMode:  define.LimitModeFromString(cfg.Editor.LimitMode),
		Channels:   cfg.Editor.Channels,
		Transports: transports,
		Store:      store.NewFileStore(cfg.Project.Path),
		AutoSave:   autoSave,
	}, logger)
	if err != nil {
		return nil, multierr.Append(err, transports.Close())
	}

	switch err := s.Load(); {
	case err == nil:
	case errors.Is(err, store.ErrNoProject):
		logger.Infof("📄 工程文件 %s 不存在，使用新工程", cfg.Project.Path)
	default:
		return nil, multierr.Append(err, s.shutdown(false))
	}
	return s, nil
}
