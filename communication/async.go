package communication

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultQueueSize 异步发送队列长度
const DefaultQueueSize = 256

// AsyncStats 发送统计
type AsyncStats struct {
	Sender    string `json:"sender"`
	Connected bool   `json:"connected"`
	Sent      int64  `json:"sent"`
	Failed    int64  `json:"failed"`
	Dropped   int64  `json:"dropped"`
	Queued    int    `json:"queued"`
}

// Async 把 Sender 包装成发送即返回的 Emit，由后台协程串行发送。
// 队列满时直接丢弃新帧，调度器不会被慢速链路拖住。
type Async struct {
	sender  Sender
	queue   chan Frame
	timeout time.Duration
	logger  *zap.SugaredLogger

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
	pending atomic.Int64 // 已入队但尚未发送完成的帧，包括正在 Send 的那一帧

	dropLog  rate.Sometimes
	errLog   rate.Sometimes
	closed   atomic.Bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewAsync(sender Sender, queueSize int, timeout time.Duration, logger *zap.SugaredLogger) *Async {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		sender:  sender,
		queue:   make(chan Frame, queueSize),
		timeout: timeout,
		logger:  logger,
		dropLog: rate.Sometimes{First: 3, Interval: 5 * time.Second},
		errLog:  rate.Sometimes{First: 3, Interval: 5 * time.Second},
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run(ctx)
	return a
}

// Emit 入队后立即返回
func (a *Async) Emit(channelID int, value float64, ts time.Time) {
	if a.closed.Load() {
		return
	}
	a.pending.Add(1)
	select {
	case a.queue <- Frame{ChannelID: channelID, Value: value, Timestamp: ts}:
	default:
		a.pending.Add(-1)
		n := a.dropped.Add(1)
		a.dropLog.Do(func() {
			a.logger.Warnf("⚠️ %s 发送队列已满，丢弃通道 %d 的数据 (累计丢弃 %d)", a.sender.Name(), channelID, n)
		})
	}
}

func (a *Async) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-a.queue:
			a.send(ctx, f)
		}
	}
}

func (a *Async) send(ctx context.Context, f Frame) {
	defer a.pending.Add(-1)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.sender.Send(ctx, f); err != nil {
		n := a.failed.Add(1)
		a.errLog.Do(func() {
			a.logger.Warnf("❌ %s 发送失败 (累计 %d 次): %v", a.sender.Name(), n, err)
		})
		return
	}
	a.sent.Add(1)
}

// Flush 等待已入队的帧全部发送完毕（包括正在发送的一帧）或超时
func (a *Async) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for a.pending.Load() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func (a *Async) Stats() AsyncStats {
	return AsyncStats{
		Sender:    a.sender.Name(),
		Connected: a.sender.IsConnected(),
		Sent:      a.sent.Load(),
		Failed:    a.failed.Load(),
		Dropped:   a.dropped.Load(),
		Queued:    len(a.queue),
	}
}

func (a *Async) Name() string { return a.sender.Name() }

// Close 停止后台协程并关闭底层 Sender
func (a *Async) Close() error {
	var err error
	a.stopOnce.Do(func() {
		a.closed.Store(true)
		a.cancel()
		<-a.done
		err = a.sender.Close()
	})
	return err
}
