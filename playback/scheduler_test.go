package playback

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"

	"servos/channel"
	"servos/curve"
	"servos/define"
)

type frame struct {
	channelID int
	value     float64
	ts        time.Time
}

type recordingEmitter struct {
	frames []frame
}

func (r *recordingEmitter) Emit(channelID int, value float64, ts time.Time) {
	r.frames = append(r.frames, frame{channelID, value, ts})
}

func (r *recordingEmitter) forChannel(id int) []frame {
	var out []frame
	for _, f := range r.frames {
		if f.channelID == id {
			out = append(out, f)
		}
	}
	return out
}

func newTestScheduler(t *testing.T, channels int, opts Options) (*Scheduler, *channel.Manager, *recordingEmitter, *observer.ObservedLogs) {
	t.Helper()
	opts = opts.withDefaults()
	m := channel.NewManager(opts.Duration)
	test.That(t, m.Reset(channels), test.ShouldBeNil)
	core, logs := observer.New(zapcore.DebugLevel)
	em := &recordingEmitter{}
	return NewScheduler(m, em, opts, zap.New(core).Sugar()), m, em, logs
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTickRequiresPlaying(t *testing.T) {
	s, _, em, _ := newTestScheduler(t, 1, Options{})
	test.That(t, s.State(), test.ShouldEqual, Stopped)
	err := s.Tick(epoch)
	test.That(t, errors.Is(err, ErrNotPlaying), test.ShouldBeTrue)

	s.Start()
	test.That(t, s.Pause(), test.ShouldBeNil)
	err = s.Tick(epoch)
	test.That(t, errors.Is(err, ErrNotPlaying), test.ShouldBeTrue)
	test.That(t, em.frames, test.ShouldBeEmpty)
}

func TestStartResamplesEnabledChannels(t *testing.T) {
	s, m, _, _ := newTestScheduler(t, 3, Options{Duration: 5, Resolution: 100})
	ch2, _ := m.Get(2)
	ch2.Enabled = false

	session := s.Start()
	test.That(t, session, test.ShouldNotBeEmpty)
	test.That(t, s.State(), test.ShouldEqual, Playing)
	test.That(t, s.CurrentTime(), test.ShouldEqual, 0.0)
	test.That(t, s.CacheValid(1), test.ShouldBeTrue)
	test.That(t, s.CacheValid(2), test.ShouldBeFalse)
	test.That(t, s.CacheValid(3), test.ShouldBeTrue)
	test.That(t, s.caches[1].Len(), test.ShouldEqual, 500)

	test.That(t, s.Start(), test.ShouldNotEqual, session)
}

func TestFirstTickAnchorsAndEmits(t *testing.T) {
	s, _, em, _ := newTestScheduler(t, 2, Options{})
	s.Start()

	test.That(t, s.Tick(epoch), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 2)
	test.That(t, s.CurrentTime(), test.ShouldEqual, 0.0)

	// 不足一个量子不前进也不发送
	test.That(t, s.Tick(epoch.Add(5*time.Millisecond)), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 2)

	test.That(t, s.Tick(epoch.Add(10*time.Millisecond)), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 4)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.01, 1e-12)

	// 一次大间隔也只前进一个步长
	test.That(t, s.Tick(epoch.Add(time.Second)), test.ShouldBeNil)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.02, 1e-12)
}

func TestScenarioTenSecondsWraps(t *testing.T) {
	s, _, _, logs := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	s.Start()

	wrapped := false
	prev := 0.0
	for i := 0; i <= 1000; i++ {
		test.That(t, s.Tick(epoch.Add(time.Duration(i)*10*time.Millisecond)), test.ShouldBeNil)
		now := s.CurrentTime()
		test.That(t, now, test.ShouldBeLessThanOrEqualTo, 5.0)
		test.That(t, now, test.ShouldBeGreaterThanOrEqualTo, 0.0)
		if now < prev {
			test.That(t, now, test.ShouldEqual, 0.0)
			wrapped = true
		}
		prev = now
	}
	test.That(t, wrapped, test.ShouldBeTrue)
	test.That(t, s.Loops(), test.ShouldEqual, 2)

	loopLogs := logs.FilterMessage("🔁 循环完成").All()
	test.That(t, loopLogs, test.ShouldHaveLength, 2)
	test.That(t, loopLogs[0].ContextMap()["drift"], test.ShouldEqual, time.Duration(0))

	status := s.Status()
	test.That(t, status.Drift.Loops, test.ShouldEqual, 2)
	test.That(t, status.Drift.MeanMs, test.ShouldAlmostEqual, 0.0, 1e-9)
}

func TestLoopDriftIsRecorded(t *testing.T) {
	s, _, _, logs := newTestScheduler(t, 1, Options{Duration: 1, Resolution: 10})
	s.Start()

	// 每拍间隔 120ms，十拍一轮，实际用时 1.2s
	for i := 0; i <= 10; i++ {
		test.That(t, s.Tick(epoch.Add(time.Duration(i)*120*time.Millisecond)), test.ShouldBeNil)
	}
	test.That(t, s.Loops(), test.ShouldEqual, 1)
	entries := logs.FilterMessage("🔁 循环完成").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["drift"], test.ShouldEqual, 200*time.Millisecond)
	test.That(t, s.Status().Drift.LastMs, test.ShouldAlmostEqual, 200.0, 1e-6)
}

func TestEmittedValuesComeFromSampleTable(t *testing.T) {
	s, m, em, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	ch, _ := m.Get(1)
	_, err := ch.Curve.InsertKeyframe(2.5, 180)
	test.That(t, err, test.ShouldBeNil)
	table := ch.Curve.SampleTable(500)

	s.Start()
	test.That(t, s.Seek(2.5), test.ShouldBeNil)
	test.That(t, s.Tick(epoch), test.ShouldBeNil)

	test.That(t, em.frames, test.ShouldHaveLength, 1)
	test.That(t, em.frames[0].value, test.ShouldEqual, table[249])
	test.That(t, em.frames[0].ts, test.ShouldEqual, epoch)
}

func TestObserversReceiveSamples(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, 2, Options{})
	var got []Sample
	unsubscribe := s.Observe(func(sample Sample) { got = append(got, sample) })

	session := s.Start()
	test.That(t, s.Tick(epoch), test.ShouldBeNil)
	test.That(t, got, test.ShouldHaveLength, 2)
	test.That(t, got[0].Session, test.ShouldEqual, session)
	test.That(t, got[0].ChannelID, test.ShouldEqual, 1)
	test.That(t, got[1].ChannelID, test.ShouldEqual, 2)
	test.That(t, got[0].Value, test.ShouldEqual, define.DefaultBaseline)

	unsubscribe()
	test.That(t, s.Tick(epoch.Add(time.Second)), test.ShouldBeNil)
	test.That(t, got, test.ShouldHaveLength, 2)
}

func TestMissPolicyResample(t *testing.T) {
	s, m, em, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	s.Start()
	test.That(t, s.Tick(epoch), test.ShouldBeNil)

	ch, _ := m.Get(1)
	test.That(t, ch.Curve.SetBaseline(30), test.ShouldBeNil)
	s.Invalidate(1)
	test.That(t, s.CacheValid(1), test.ShouldBeFalse)

	test.That(t, s.Tick(epoch.Add(10*time.Millisecond)), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 2)
	test.That(t, em.frames[1].value, test.ShouldEqual, 30.0)
	test.That(t, s.CacheValid(1), test.ShouldBeTrue)
}

func TestMissPolicySkip(t *testing.T) {
	s, m, em, logs := newTestScheduler(t, 2, Options{Duration: 5, Resolution: 100, MissPolicy: define.MISS_POLICY_SKIP})
	s.Start()
	test.That(t, s.Tick(epoch), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 2)

	ch, _ := m.Get(1)
	test.That(t, ch.Curve.SetBaseline(30), test.ShouldBeNil)
	s.Invalidate(1)

	// 本拍跳过通道 1，通道 2 不受影响
	test.That(t, s.Tick(epoch.Add(10*time.Millisecond)), test.ShouldBeNil)
	test.That(t, em.frames, test.ShouldHaveLength, 3)
	test.That(t, em.frames[2].channelID, test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("⚠️ 本拍跳过通道").Len(), test.ShouldEqual, 1)

	// 下一拍之前补采样
	test.That(t, s.Tick(epoch.Add(20*time.Millisecond)), test.ShouldBeNil)
	test.That(t, em.forChannel(1), test.ShouldHaveLength, 2)
	test.That(t, em.forChannel(1)[1].value, test.ShouldEqual, 30.0)
}

func TestNonLoopingChannelStopsAfterFirstLoop(t *testing.T) {
	s, m, em, _ := newTestScheduler(t, 2, Options{Duration: 1, Resolution: 10})
	ch, _ := m.Get(2)
	ch.Loop = false
	s.Start()

	for i := 0; i <= 15; i++ {
		test.That(t, s.Tick(epoch.Add(time.Duration(i)*100*time.Millisecond)), test.ShouldBeNil)
	}
	// 第一轮 10 拍（含首拍），之后只有通道 1 继续
	test.That(t, em.forChannel(2), test.ShouldHaveLength, 10)
	test.That(t, em.forChannel(1), test.ShouldHaveLength, 16)
}

func TestPauseResumeStop(t *testing.T) {
	s, _, em, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	test.That(t, errors.Is(s.Pause(), ErrNotPlaying), test.ShouldBeTrue)
	test.That(t, errors.Is(s.Resume(), ErrInvalidTransition), test.ShouldBeTrue)

	s.Start()
	for i := 0; i <= 10; i++ {
		test.That(t, s.Tick(epoch.Add(time.Duration(i)*10*time.Millisecond)), test.ShouldBeNil)
	}
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.1, 1e-12)

	test.That(t, s.Pause(), test.ShouldBeNil)
	test.That(t, s.State(), test.ShouldEqual, Paused)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.1, 1e-12)

	test.That(t, s.Resume(), test.ShouldBeNil)
	count := len(em.frames)
	// 恢复后的首拍只重新锚定
	test.That(t, s.Tick(epoch.Add(time.Hour)), test.ShouldBeNil)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.1, 1e-12)
	test.That(t, em.frames, test.ShouldHaveLength, count+1)

	s.Stop()
	test.That(t, s.State(), test.ShouldEqual, Stopped)
	test.That(t, s.CurrentTime(), test.ShouldEqual, 0.0)
	s.Stop()
}

func TestSeek(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	test.That(t, s.Seek(1.234), test.ShouldBeNil)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 1.23, 1e-12)
	test.That(t, s.Seek(5), test.ShouldBeNil)
	test.That(t, s.CurrentTime(), test.ShouldBeLessThan, 5.0)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 4.99, 1e-12)
	test.That(t, errors.Is(s.Seek(-1), curve.ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, errors.Is(s.Seek(6), curve.ErrOutOfRange), test.ShouldBeTrue)
}

func TestSetDurationAndResolutionInvalidate(t *testing.T) {
	s, m, _, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100})
	ch, _ := m.Get(1)
	id, _ := ch.Curve.InsertKeyframe(2.5, 180)
	s.Start()
	test.That(t, s.Seek(2), test.ShouldBeNil)

	test.That(t, s.SetDuration(10), test.ShouldBeNil)
	test.That(t, s.CacheValid(1), test.ShouldBeFalse)
	test.That(t, s.Duration(), test.ShouldEqual, 10.0)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 4.0, 1e-9)
	kf, _ := ch.Curve.Keyframe(id)
	test.That(t, kf.Time, test.ShouldEqual, 5.0)

	s.Start()
	test.That(t, s.caches[1].Len(), test.ShouldEqual, 1000)

	test.That(t, s.SetResolution(50), test.ShouldBeNil)
	test.That(t, s.CacheValid(1), test.ShouldBeFalse)
	test.That(t, s.StepSize(), test.ShouldAlmostEqual, 0.02, 1e-12)
	test.That(t, s.Quantum(), test.ShouldEqual, 20*time.Millisecond)

	test.That(t, errors.Is(s.SetDuration(0), curve.ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, errors.Is(s.SetResolution(-1), curve.ErrOutOfRange), test.ShouldBeTrue)
	test.That(t, errors.Is(s.SetStepScale(0), curve.ErrOutOfRange), test.ShouldBeTrue)
}

func TestStepScaleAdvancesFaster(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, 1, Options{Duration: 5, Resolution: 100, StepScale: 1.6})
	s.Start()
	test.That(t, s.Tick(epoch), test.ShouldBeNil)
	test.That(t, s.Tick(epoch.Add(10*time.Millisecond)), test.ShouldBeNil)
	test.That(t, s.CurrentTime(), test.ShouldAlmostEqual, 0.016, 1e-12)
}

func TestCacheAtIndex(t *testing.T) {
	c := &Cache{samples: []float64{0, 1, 2, 3, 4}, duration: 2, valid: true}
	test.That(t, c.At(0), test.ShouldEqual, 0.0)
	test.That(t, c.At(0.99), test.ShouldEqual, 1.0)
	test.That(t, c.At(1), test.ShouldEqual, 2.0)
	test.That(t, c.At(2), test.ShouldEqual, 4.0)
	test.That(t, c.At(3), test.ShouldEqual, 4.0)
	test.That(t, SampleCount(100, 0.001), test.ShouldEqual, 2)
	test.That(t, SampleCount(100, 5), test.ShouldEqual, 500)
	var missing *Cache
	test.That(t, missing.Valid(), test.ShouldBeFalse)
}
