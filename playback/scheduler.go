// Package playback 实现驱动全部通道的播放调度器。
// 调度器本身不加锁，所有调用必须来自同一个逻辑线程（由 studio 的互斥锁保证）。
package playback

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"servos/channel"
	"servos/curve"
	"servos/define"
)

var (
	ErrNotPlaying        = errors.New("调度器未在播放")
	ErrInvalidTransition = errors.New("当前状态不允许该操作")
	ErrCacheMiss         = errors.New("采样缓存无效")
)

// State 调度器状态
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

// Emitter 传输协作方，发送即返回，不等待确认
type Emitter interface {
	Emit(channelID int, value float64, ts time.Time)
}

// Sample 每次发送给观测方的采样
type Sample struct {
	Session     string    `json:"session"`
	ChannelID   int       `json:"channelId"`
	Value       float64   `json:"value"`
	CurrentTime float64   `json:"time"`
	Loop        int       `json:"loop"`
	Timestamp   time.Time `json:"timestamp"`
}

// Channels 调度器需要的通道访问能力
type Channels interface {
	List() []*channel.Channel
	SetDuration(d float64) error
}

// Options 调度参数
type Options struct {
	Duration   float64
	Resolution float64 // 每秒更新次数
	StepScale  float64 // 每次前进的步长倍数，默认 1
	MissPolicy define.MissPolicy
}

func (o Options) withDefaults() Options {
	if o.Duration <= 0 {
		o.Duration = define.DefaultDuration
	}
	if o.Resolution <= 0 {
		o.Resolution = define.DefaultResolution
	}
	if o.StepScale <= 0 {
		o.StepScale = 1
	}
	if o.MissPolicy == define.MISS_POLICY_UNKNOWN {
		o.MissPolicy = define.MISS_POLICY_RESAMPLE
	}
	return o
}

type sampleObserver struct {
	id int
	fn func(Sample)
}

// Scheduler 播放状态机：Stopped → Playing ⇄ Paused → Stopped
type Scheduler struct {
	channels Channels
	emitter  Emitter
	logger   *zap.SugaredLogger

	observers []sampleObserver
	nextObs   int

	caches  map[int]*Cache
	skipped map[int]bool // skip 策略下本拍跳过、下一拍前补采样的通道

	state      State
	session    string
	duration   float64
	resolution float64
	stepScale  float64
	missPolicy define.MissPolicy

	step      int // currentTime = step × stepSize
	loops     int
	anchored  bool
	lastTick  time.Time
	loopStart time.Time
	pausedAt  time.Time

	stats LoopStats
}

func NewScheduler(channels Channels, emitter Emitter, opts Options, logger *zap.SugaredLogger) *Scheduler {
	opts = opts.withDefaults()
	return &Scheduler{
		channels:   channels,
		emitter:    emitter,
		logger:     logger,
		caches:     make(map[int]*Cache),
		skipped:    make(map[int]bool),
		duration:   opts.Duration,
		resolution: opts.Resolution,
		stepScale:  opts.StepScale,
		missPolicy: opts.MissPolicy,
	}
}

func (s *Scheduler) SetEmitter(e Emitter) { s.emitter = e }

// Observe 注册观测回调，返回取消函数
func (s *Scheduler) Observe(fn func(Sample)) func() {
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, sampleObserver{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Scheduler) State() State        { return s.state }
func (s *Scheduler) Session() string     { return s.session }
func (s *Scheduler) Duration() float64   { return s.duration }
func (s *Scheduler) Resolution() float64 { return s.resolution }
func (s *Scheduler) Loops() int          { return s.loops }
func (s *Scheduler) StepSize() float64   { return s.stepScale / s.resolution }
func (s *Scheduler) Quantum() time.Duration {
	return time.Duration(float64(time.Second) / s.resolution)
}

// CurrentTime 当前播放位置，不会超过 duration
func (s *Scheduler) CurrentTime() float64 {
	return math.Min(float64(s.step)*s.StepSize(), s.duration)
}

// Start 为失效的通道重新采样并从 0 开始播放，返回新的会话 ID
func (s *Scheduler) Start() string {
	for _, ch := range s.channels.List() {
		if ch.Enabled && !s.caches[ch.ID].Valid() {
			s.resample(ch)
		}
	}
	clear(s.skipped)
	s.step = 0
	s.loops = 0
	s.anchored = false
	s.loopStart = time.Time{}
	s.stats.Reset()
	s.session = uuid.NewString()
	s.state = Playing
	s.logger.Infof("▶️ 开始播放 (会话: %s, 时长: %.2fs, 分辨率: %.0f/s)", s.session, s.duration, s.resolution)
	return s.session
}

func (s *Scheduler) Pause() error {
	if s.state != Playing {
		return errors.Wrapf(ErrNotPlaying, "当前状态 %s", s.state)
	}
	s.state = Paused
	s.pausedAt = s.lastTick
	s.logger.Infof("⏸️ 暂停播放 (位置: %.3fs)", s.CurrentTime())
	return nil
}

func (s *Scheduler) Resume() error {
	if s.state != Paused {
		return errors.Wrapf(ErrInvalidTransition, "只能从 paused 恢复，当前状态 %s", s.state)
	}
	s.state = Playing
	s.anchored = false
	s.logger.Infof("⏯️ 恢复播放 (位置: %.3fs)", s.CurrentTime())
	return nil
}

// Stop 停止播放并回到 0，可重复调用
func (s *Scheduler) Stop() {
	if s.state != Stopped {
		s.logger.Infof("⏹️ 停止播放 (会话: %s, 完成 %d 轮)", s.session, s.loops)
	}
	s.state = Stopped
	s.step = 0
	s.anchored = false
}

// Seek 跳转到 t，任何状态下都可调用
func (s *Scheduler) Seek(t float64) error {
	if math.IsNaN(t) || t < 0 || t > s.duration {
		return errors.Wrapf(curve.ErrOutOfRange, "跳转位置 %v 不在 [0, %.3f] 内", t, s.duration)
	}
	s.step = s.stepFor(t)
	return nil
}

// Tick 由外部周期性驱动。首拍只记录时间戳并发送当前采样；
// 之后每当距上一拍超过一个量子就前进一个固定步长。
func (s *Scheduler) Tick(now time.Time) error {
	if s.state != Playing {
		return errors.Wrapf(ErrNotPlaying, "当前状态 %s", s.state)
	}
	s.recoverSkipped()

	if !s.anchored {
		s.anchored = true
		if s.loopStart.IsZero() {
			s.loopStart = now
		} else if !s.pausedAt.IsZero() {
			// 暂停的时间不计入本轮用时
			s.loopStart = s.loopStart.Add(now.Sub(s.pausedAt))
		}
		s.pausedAt = time.Time{}
		s.lastTick = now
		s.emit(now)
		return nil
	}

	if now.Sub(s.lastTick) < s.Quantum() {
		return nil
	}
	s.lastTick = now
	s.advance(now)
	s.emit(now)
	return nil
}

func (s *Scheduler) advance(now time.Time) {
	s.step++
	if float64(s.step)*s.StepSize() < s.duration-curve.Epsilon {
		return
	}
	s.step = 0
	s.loops++
	actual := now.Sub(s.loopStart)
	target := time.Duration(s.duration * float64(time.Second))
	drift := actual - target
	s.stats.Record(drift)
	s.logger.Infow("🔁 循环完成",
		"loop", s.loops,
		"actual", actual,
		"target", target,
		"drift", drift,
	)
	s.loopStart = now
}

func (s *Scheduler) emit(now time.Time) {
	t := s.CurrentTime()
	for _, ch := range s.channels.List() {
		if !ch.Enabled || (!ch.Loop && s.loops > 0) {
			continue
		}
		value, err := s.lookup(ch, t)
		if err != nil {
			s.logger.Debugw("⚠️ 本拍跳过通道", "channel", ch.ID, "error", err)
			continue
		}
		if s.emitter != nil {
			s.emitter.Emit(ch.ID, value, now)
		}
		if len(s.observers) > 0 {
			sample := Sample{Session: s.session, ChannelID: ch.ID, Value: value, CurrentTime: t, Loop: s.loops, Timestamp: now}
			for _, o := range s.observers {
				o.fn(sample)
			}
		}
	}
}

func (s *Scheduler) lookup(ch *channel.Channel, t float64) (float64, error) {
	c := s.caches[ch.ID]
	if !c.Valid() {
		if s.missPolicy == define.MISS_POLICY_SKIP {
			s.skipped[ch.ID] = true
			return 0, errors.Wrapf(ErrCacheMiss, "通道 %d", ch.ID)
		}
		c = s.resample(ch)
	}
	return c.At(t), nil
}

// recoverSkipped 为上一拍跳过的通道补采样
func (s *Scheduler) recoverSkipped() {
	if len(s.skipped) == 0 {
		return
	}
	for _, ch := range s.channels.List() {
		if s.skipped[ch.ID] && !s.caches[ch.ID].Valid() {
			s.resample(ch)
		}
	}
	clear(s.skipped)
}

func (s *Scheduler) resample(ch *channel.Channel) *Cache {
	c := s.caches[ch.ID]
	if c == nil {
		c = &Cache{}
		s.caches[ch.ID] = c
	}
	c.rebuild(ch.Curve, s.resolution)
	s.logger.Debugw("🔧 重新采样", "channel", ch.ID, "samples", c.Len())
	return c
}

// Invalidate 使通道缓存失效，下一次使用前重新采样
func (s *Scheduler) Invalidate(channelID int) {
	if c := s.caches[channelID]; c != nil {
		c.valid = false
	}
}

func (s *Scheduler) InvalidateAll() {
	for _, c := range s.caches {
		c.valid = false
	}
}

// Forget 删除已移除通道的缓存
func (s *Scheduler) Forget(channelID int) {
	delete(s.caches, channelID)
	delete(s.skipped, channelID)
}

// CacheValid 缓存是否有效
func (s *Scheduler) CacheValid(channelID int) bool { return s.caches[channelID].Valid() }

// SetDuration 修改时间轴长度，曲线按比例缩放，缓存全部失效
func (s *Scheduler) SetDuration(d float64) error {
	if !(d > 0) || math.IsInf(d, 0) {
		return errors.Wrapf(curve.ErrOutOfRange, "时长必须为正数，收到 %v", d)
	}
	t := s.CurrentTime() * d / s.duration
	if err := s.channels.SetDuration(d); err != nil {
		return err
	}
	s.duration = d
	s.step = s.stepFor(t)
	s.InvalidateAll()
	return nil
}

// SetResolution 修改每秒更新次数，缓存全部失效
func (s *Scheduler) SetResolution(r float64) error {
	if !(r > 0) || math.IsInf(r, 0) {
		return errors.Wrapf(curve.ErrOutOfRange, "分辨率必须为正数，收到 %v", r)
	}
	t := s.CurrentTime()
	s.resolution = r
	s.step = s.stepFor(t)
	s.InvalidateAll()
	return nil
}

func (s *Scheduler) SetStepScale(x float64) error {
	if !(x > 0) || math.IsInf(x, 0) {
		return errors.Wrapf(curve.ErrOutOfRange, "步长倍数必须为正数，收到 %v", x)
	}
	t := s.CurrentTime()
	s.stepScale = x
	s.step = s.stepFor(t)
	return nil
}

func (s *Scheduler) StepScale() float64                { return s.stepScale }
func (s *Scheduler) MissPolicy() define.MissPolicy     { return s.missPolicy }
func (s *Scheduler) SetMissPolicy(p define.MissPolicy) { s.missPolicy = p }

// stepFor 返回不超过 t 的最大步数，且对应时间严格小于 duration
func (s *Scheduler) stepFor(t float64) int {
	step := int(math.Floor(t/s.StepSize() + 1e-9))
	if float64(step)*s.StepSize() >= s.duration-curve.Epsilon {
		step = max(0, int(math.Ceil((s.duration-curve.Epsilon)/s.StepSize()))-1)
	}
	return step
}

// Status 调度器状态快照
type Status struct {
	State       string       `json:"state"`
	Session     string       `json:"session,omitempty"`
	CurrentTime float64      `json:"currentTime"`
	Duration    float64      `json:"duration"`
	Resolution  float64      `json:"resolution"`
	StepSize    float64      `json:"stepSize"`
	StepScale   float64      `json:"stepScale"`
	MissPolicy  string       `json:"missPolicy"`
	Loops       int          `json:"loops"`
	Drift       DriftSummary `json:"drift"`
}

func (s *Scheduler) Status() Status {
	return Status{
		State:       s.state.String(),
		Session:     s.session,
		CurrentTime: s.CurrentTime(),
		Duration:    s.duration,
		Resolution:  s.resolution,
		StepSize:    s.StepSize(),
		StepScale:   s.stepScale,
		MissPolicy:  s.missPolicy.String(),
		Loops:       s.loops,
		Drift:       s.stats.Summary(),
	}
}
