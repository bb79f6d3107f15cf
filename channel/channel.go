// Package channel 描述单个舵机通道（曲线 + 播放开关 + 数值上下限）以及通道注册表
package channel

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"servos/curve"
	"servos/define"
)

var (
	ErrNotFound = errors.New("通道不存在")
	ErrLimit    = errors.New("通道数量超出允许范围")
)

// Limits 通道数值上下限
type Limits struct {
	Min float64
	Max float64
}

func DefaultLimits() Limits {
	return Limits{Min: define.DefaultLimitMin, Max: define.DefaultLimitMax}
}

func (l Limits) Validate() error {
	if math.IsNaN(l.Min) || math.IsNaN(l.Max) || math.IsInf(l.Min, 0) || math.IsInf(l.Max, 0) {
		return errors.Wrapf(curve.ErrOutOfRange, "无效的上下限 [%v, %v]", l.Min, l.Max)
	}
	if l.Min >= l.Max {
		return errors.Wrapf(curve.ErrOutOfRange, "下限 %.2f 必须小于上限 %.2f", l.Min, l.Max)
	}
	return nil
}

func (l Limits) Contains(v float64) bool { return v >= l.Min && v <= l.Max }

// Apply 按模式处理数值：advisory 原样返回，clamp 钳制到边界，reject 超出时返回 ErrOutOfRange
func (l Limits) Apply(mode define.LimitMode, v float64) (float64, error) {
	switch mode {
	case define.LIMIT_MODE_CLAMP:
		return math.Max(l.Min, math.Min(l.Max, v)), nil
	case define.LIMIT_MODE_REJECT:
		if !l.Contains(v) {
			return v, errors.Wrapf(curve.ErrOutOfRange, "数值 %.2f 超出 [%.2f, %.2f]", v, l.Min, l.Max)
		}
	}
	return v, nil
}

// Channel 一个独立动作的执行器通道
type Channel struct {
	ID      int
	Name    string
	Enabled bool // 参与播放
	Loop    bool // 为 false 时每次播放只输出第一轮
	Limits  Limits
	Curve   *curve.Curve
}

// New 创建默认通道：启用、循环、基准值 90、上下限 0-180
func New(id int, name string, duration float64) (*Channel, error) {
	c, err := curve.New(duration, define.DefaultBaseline)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultName(id)
	}
	return &Channel{
		ID:      id,
		Name:    name,
		Enabled: true,
		Loop:    true,
		Limits:  DefaultLimits(),
		Curve:   c,
	}, nil
}

func DefaultName(id int) string { return fmt.Sprintf("Servo %d", id) }

// Clone 深拷贝，曲线同样复制
func (c *Channel) Clone() *Channel {
	out := *c
	out.Curve = c.Curve.Clone()
	return &out
}
