// Package studio 把通道、编辑器、调度器、输出和工程存储组合成一个上下文对象。
// 所有对外操作都经过同一把互斥锁，时钟回调也不例外，因此内部组件可以按单线程编写。
package studio

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"servos/channel"
	"servos/communication"
	"servos/curve"
	"servos/define"
	"servos/editor"
	"servos/playback"
	"servos/store"
)

// flushTimeout 关闭输出前等待剩余帧发送完毕的最长时间
const flushTimeout = 2 * time.Second

// Options 创建 Studio 所需的参数
type Options struct {
	Playback   playback.Options
	LimitMode  define.LimitMode
	Channels   int                   // 初始通道数量
	Transports *communication.Fanout // 可为空，为空时只通知观测方
	Store      *store.FileStore      // 可为空，为空时无法保存
	AutoSave   time.Duration         // 自动保存的去抖间隔，0 表示关闭
	Clock      clock.Clock
}

// Studio 单个编辑会话的全部状态
type Studio struct {
	mutex sync.Mutex

	channels   *channel.Manager
	bus        *editor.Bus
	editor     *editor.Editor
	scheduler  *playback.Scheduler
	runner     *playback.Runner
	transports *communication.Fanout
	store      *store.FileStore
	saver      *store.AutoSaver
	logger     *zap.SugaredLogger
}

func New(opts Options, logger *zap.SugaredLogger) (*Studio, error) {
	if opts.Playback.Duration <= 0 {
		opts.Playback.Duration = define.DefaultDuration
	}
	if opts.Channels == 0 {
		opts.Channels = define.MinChannelCount
	}

	s := &Studio{
		channels:   channel.NewManager(opts.Playback.Duration),
		bus:        editor.NewBus(),
		transports: opts.Transports,
		store:      opts.Store,
		logger:     logger,
	}
	if err := s.channels.Reset(opts.Channels); err != nil {
		return nil, err
	}

	var emitter playback.Emitter
	if opts.Transports != nil {
		emitter = opts.Transports
	}
	s.scheduler = playback.NewScheduler(s.channels, emitter, opts.Playback, logger)
	s.editor = editor.New(s.channels, s.scheduler, s.bus, opts.LimitMode, logger)
	s.runner = playback.NewRunner(opts.Clock, s.tick, logger)

	if opts.Store != nil && opts.AutoSave > 0 {
		s.saver = store.NewAutoSaver(opts.Store, s.bus, opts.AutoSave, func() (store.Project, error) {
			return s.Snapshot(), nil
		}, logger)
	}
	return s, nil
}

// tick 由 Runner 的协程调用
func (s *Studio) tick(now time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.scheduler.Tick(now)
}

// Bus 变更事件总线，订阅回调在持有 Studio 锁时被调用，不能再调用 Studio 的方法
func (s *Studio) Bus() *editor.Bus { return s.bus }

// Observe 订阅播放采样，回调在持有 Studio 锁时被调用，必须立即返回
func (s *Studio) Observe(fn func(playback.Sample)) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cancel := s.scheduler.Observe(fn)
	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		cancel()
	}
}

// Close 停止播放、关闭自动保存和所有输出
func (s *Studio) Close() error { return s.shutdown(true) }

func (s *Studio) shutdown(save bool) error {
	s.mutex.Lock()
	s.scheduler.Stop()
	s.runner.Stop()
	s.mutex.Unlock()

	var err error
	if s.saver != nil {
		s.saver.Close()
		if save {
			// 关闭前保存最后一次修改
			err = multierr.Append(err, s.saver.SaveNow())
		}
	}
	if s.transports != nil {
		if !s.transports.Flush(flushTimeout) {
			s.logger.Warnf("⚠️ %v 内未能发送完剩余数据，直接关闭输出", flushTimeout)
		}
		err = multierr.Append(err, s.transports.Close())
	}
	return err
}

// TransportStats 各输出的发送统计
func (s *Studio) TransportStats() []communication.AsyncStats {
	if s.transports == nil {
		return []communication.AsyncStats{}
	}
	return s.transports.Stats()
}

// Status 系统状态
type Status struct {
	Channels   int                        `json:"channels"`
	NextID     int                        `json:"nextId"`
	LimitMode  string                     `json:"limitMode"`
	Playback   playback.Status            `json:"playback"`
	Transports []communication.AsyncStats `json:"transports"`
	Project    string                     `json:"project,omitempty"`
	AutoSaves  int64                      `json:"autoSaves"`
	Timestamp  time.Time                  `json:"timestamp"`
}

func (s *Studio) Status() Status {
	s.mutex.Lock()
	st := Status{
		Channels:  s.channels.Count(),
		NextID:    s.channels.NextID(),
		LimitMode: s.editor.LimitMode().String(),
		Playback:  s.scheduler.Status(),
		Timestamp: time.Now(),
	}
	s.mutex.Unlock()

	st.Transports = s.TransportStats()
	if s.store != nil {
		st.Project = s.store.Path()
	}
	if s.saver != nil {
		st.AutoSaves = s.saver.Saves()
	}
	return st
}

func (s *Studio) LimitMode() define.LimitMode {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.editor.LimitMode()
}

func (s *Studio) SetLimitMode(mode define.LimitMode) error {
	if mode == define.LIMIT_MODE_UNKNOWN {
		return errors.Wrap(curve.ErrOutOfRange, "未知的限位模式")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.editor.SetLimitMode(mode)
	return nil
}
