package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"go.uber.org/zap"

	"servos/editor"
)

// AutoSaver 监听变更事件，在停止编辑一段时间后保存工程
type AutoSaver struct {
	store       *FileStore
	snapshot    func() (Project, error)
	debounced   func(f func())
	unsubscribe func()
	logger      *zap.SugaredLogger

	saveMutex sync.Mutex
	lastErr   error // 由 saveMutex 保护
	saves     atomic.Int64
	closed    atomic.Bool
}

func NewAutoSaver(store *FileStore, bus *editor.Bus, delay time.Duration, snapshot func() (Project, error), logger *zap.SugaredLogger) *AutoSaver {
	a := &AutoSaver{
		store:     store,
		snapshot:  snapshot,
		debounced: debounce.New(delay),
		logger:    logger,
	}
	a.unsubscribe = bus.Subscribe(func(ev editor.ChangeEvent) {
		if a.closed.Load() {
			return
		}
		a.debounced(a.save)
	})
	return a
}

// SaveNow 立即保存
func (a *AutoSaver) SaveNow() error {
	a.saveMutex.Lock()
	defer a.saveMutex.Unlock()

	p, err := a.snapshot()
	if err == nil {
		err = a.store.Save(p)
	}
	a.lastErr = err
	if err != nil {
		return err
	}
	a.saves.Add(1)
	return nil
}

func (a *AutoSaver) save() {
	if a.closed.Load() {
		return
	}
	if err := a.SaveNow(); err != nil {
		a.logger.Warnf("⚠️ 自动保存失败: %v", err)
		return
	}
	a.logger.Debugf("💾 工程已自动保存到 %s", a.store.Path())
}

func (a *AutoSaver) Saves() int64 { return a.saves.Load() }

// LastError 最近一次自动保存失败的原因
func (a *AutoSaver) LastError() error {
	a.saveMutex.Lock()
	defer a.saveMutex.Unlock()
	return a.lastErr
}

// Close 取消订阅，之后触发的保存都会被忽略
func (a *AutoSaver) Close() {
	if a.closed.CompareAndSwap(false, true) {
		a.unsubscribe()
	}
}
