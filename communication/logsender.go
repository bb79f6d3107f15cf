package communication

import (
	"context"

	"go.uber.org/zap"
)

// LogSender 只记录帧，用于没有硬件时调试
type LogSender struct {
	logger *zap.SugaredLogger
}

func NewLogSender(logger *zap.SugaredLogger) *LogSender { return &LogSender{logger: logger} }

func (s *LogSender) Send(_ context.Context, f Frame) error {
	s.logger.Debugw("📤 输出", "channel", f.ChannelID, "value", f.Value, "ts", f.Timestamp)
	return nil
}

func (s *LogSender) IsConnected() bool { return true }
func (s *LogSender) Close() error      { return nil }
func (s *LogSender) Name() string      { return "log" }
