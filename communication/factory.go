package communication

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Constructor 根据参数创建发送器
type Constructor func(params map[string]any, logger *zap.SugaredLogger) (Sender, error)

// TransportFactory 发送器工厂
type TransportFactory struct {
	constructors map[string]Constructor
	mutex        sync.RWMutex
}

var defaultFactory = &TransportFactory{constructors: make(map[string]Constructor)}

func init() {
	RegisterTransport("log", func(_ map[string]any, logger *zap.SugaredLogger) (Sender, error) {
		return NewLogSender(logger), nil
	})
	RegisterTransport("serial", func(params map[string]any, logger *zap.SugaredLogger) (Sender, error) {
		var cfg SerialConfig
		if err := DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return OpenSerial(cfg, logger)
	})
	RegisterTransport("can-bridge", func(params map[string]any, _ *zap.SugaredLogger) (Sender, error) {
		var cfg CanBridgeConfig
		if err := DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return NewCanBridgeSender(cfg), nil
	})
}

// RegisterTransport 注册发送器类型
func RegisterTransport(kind string, constructor Constructor) {
	defaultFactory.mutex.Lock()
	defer defaultFactory.mutex.Unlock()
	defaultFactory.constructors[kind] = constructor
}

// CreateTransport 创建发送器实例
func CreateTransport(kind string, params map[string]any, logger *zap.SugaredLogger) (Sender, error) {
	defaultFactory.mutex.RLock()
	constructor, ok := defaultFactory.constructors[kind]
	defaultFactory.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("未知的发送器类型: %s", kind)
	}
	return constructor(params, logger)
}

// GetSupportedTransports 获取支持的发送器类型（已排序）
func GetSupportedTransports() []string {
	defaultFactory.mutex.RLock()
	defer defaultFactory.mutex.RUnlock()
	kinds := lo.Keys(defaultFactory.constructors)
	slices.Sort(kinds)
	return kinds
}

// DecodeParams 按 json 标签把通用参数解码到结构体
func DecodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("解析发送器参数失败：%w", err)
	}
	return nil
}

// Fanout 把同一帧分发给多个异步发送器
type Fanout struct {
	targets []*Async
}

func NewFanout(targets ...*Async) *Fanout { return &Fanout{targets: targets} }

func (f *Fanout) Emit(channelID int, value float64, ts time.Time) {
	for _, t := range f.targets {
		t.Emit(channelID, value, ts)
	}
}

func (f *Fanout) Stats() []AsyncStats {
	return lo.Map(f.targets, func(t *Async, _ int) AsyncStats { return t.Stats() })
}

func (f *Fanout) Len() int { return len(f.targets) }

// Flush 等待所有队列发送完毕，任一超时返回 false
func (f *Fanout) Flush(timeout time.Duration) bool {
	ok := true
	for _, t := range f.targets {
		ok = t.Flush(timeout) && ok
	}
	return ok
}

// Close 关闭全部发送器，错误合并返回
func (f *Fanout) Close() error {
	var err error
	for _, t := range f.targets {
		err = multierr.Append(err, t.Close())
	}
	return err
}
