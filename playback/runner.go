package playback

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TickFunc 每个时钟周期调用一次，返回 ErrNotPlaying 时循环退出
type TickFunc func(now time.Time) error

// Runner 周期性驱动调度器的时钟源
type Runner struct {
	clock       clock.Clock
	tick        TickFunc
	logger      *zap.SugaredLogger
	stopChan    chan struct{} // 当前循环的停止通道
	period      time.Duration
	isRunning   bool
	runnerMutex sync.Mutex // 保护 stopChan / isRunning / period
}

func NewRunner(clk clock.Clock, tick TickFunc, logger *zap.SugaredLogger) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{clock: clk, tick: tick, logger: logger}
}

// Start 以 period 为周期启动循环；已有循环时先通知旧循环退出
func (r *Runner) Start(period time.Duration) error {
	if period <= 0 {
		return errors.Errorf("无效的时钟周期 %v", period)
	}

	r.runnerMutex.Lock()
	defer r.runnerMutex.Unlock()

	if r.isRunning {
		close(r.stopChan)
	}
	r.stopChan = make(chan struct{})
	r.isRunning = true
	r.period = period

	ticker := r.clock.Ticker(period)
	go r.loop(r.stopChan, ticker)
	return nil
}

// Stop 通知循环退出，不等待正在执行的一拍
func (r *Runner) Stop() {
	r.runnerMutex.Lock()
	defer r.runnerMutex.Unlock()

	if !r.isRunning {
		return
	}
	close(r.stopChan)
	r.isRunning = false
}

func (r *Runner) IsRunning() bool {
	r.runnerMutex.Lock()
	defer r.runnerMutex.Unlock()
	return r.isRunning
}

func (r *Runner) Period() time.Duration {
	r.runnerMutex.Lock()
	defer r.runnerMutex.Unlock()
	return r.period
}

func (r *Runner) loop(stopChan <-chan struct{}, ticker *clock.Ticker) {
	defer ticker.Stop()
	defer r.handleLoopExit(stopChan)

	for {
		select {
		case <-stopChan:
			return
		case now := <-ticker.C:
			// 暂停或停止必须在下一拍之前生效
			select {
			case <-stopChan:
				return
			default:
			}
			if err := r.tick(now); err != nil {
				if errors.Is(err, ErrNotPlaying) {
					r.logger.Debugf("ℹ️ 调度器已不在播放状态，时钟循环退出")
					return
				}
				r.logger.Warnf("⚠️ 时钟周期处理出错: %v", err)
			}
		}
	}
}

// handleLoopExit 只有当前循环仍是活跃循环时才修改状态
func (r *Runner) handleLoopExit(stopChan <-chan struct{}) {
	r.runnerMutex.Lock()
	defer r.runnerMutex.Unlock()

	if stopChan == r.stopChan {
		r.isRunning = false
	}
}
