package editor

import (
	"math"

	"github.com/pkg/errors"

	"servos/curve"
	"servos/define"
)

var ErrInvalidViewport = errors.New("视口参数无效")

// Viewport 曲线坐标（时间, 数值）与绘图像素坐标之间的仿射映射，y 轴向下
type Viewport struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	PaddingLeft   float64 `json:"paddingLeft"`
	PaddingRight  float64 `json:"paddingRight"`
	PaddingTop    float64 `json:"paddingTop"`
	PaddingBottom float64 `json:"paddingBottom"`
	Duration      float64 `json:"duration"`
	ValueMin      float64 `json:"valueMin"`
	ValueMax      float64 `json:"valueMax"`
}

// DefaultViewport 1000x200 的时间轴，左侧留出刻度区
func DefaultViewport(duration float64) Viewport {
	return Viewport{
		Width:         1000,
		Height:        200,
		PaddingLeft:   50,
		PaddingRight:  20,
		PaddingTop:    30,
		PaddingBottom: 30,
		Duration:      duration,
		ValueMin:      define.DefaultLimitMin,
		ValueMax:      define.DefaultLimitMax,
	}
}

func (vp Viewport) plotWidth() float64  { return vp.Width - vp.PaddingLeft - vp.PaddingRight }
func (vp Viewport) plotHeight() float64 { return vp.Height - vp.PaddingTop - vp.PaddingBottom }

func (vp Viewport) Validate() error {
	for _, f := range []float64{vp.Width, vp.Height, vp.PaddingLeft, vp.PaddingRight, vp.PaddingTop, vp.PaddingBottom, vp.Duration, vp.ValueMin, vp.ValueMax} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrap(ErrInvalidViewport, "包含非法数值")
		}
	}
	if vp.plotWidth() <= 0 || vp.plotHeight() <= 0 {
		return errors.Wrapf(ErrInvalidViewport, "绘图区域 %.1fx%.1f", vp.plotWidth(), vp.plotHeight())
	}
	if vp.Duration <= 0 {
		return errors.Wrapf(ErrInvalidViewport, "时长 %v", vp.Duration)
	}
	if vp.ValueMax <= vp.ValueMin {
		return errors.Wrapf(ErrInvalidViewport, "数值范围 [%v, %v]", vp.ValueMin, vp.ValueMax)
	}
	return nil
}

// ToCurve 像素坐标转曲线坐标
func (vp Viewport) ToCurve(x, y float64) (t, v float64) {
	t = (x - vp.PaddingLeft) / vp.plotWidth() * vp.Duration
	v = vp.ValueMax - (y-vp.PaddingTop)/vp.plotHeight()*(vp.ValueMax-vp.ValueMin)
	return t, v
}

// ToViewport 曲线坐标转像素坐标
func (vp Viewport) ToViewport(t, v float64) (x, y float64) {
	x = vp.PaddingLeft + t/vp.Duration*vp.plotWidth()
	y = vp.PaddingTop + (vp.ValueMax-v)/(vp.ValueMax-vp.ValueMin)*vp.plotHeight()
	return x, y
}

func (vp Viewport) toPixel(p curve.Point) curve.Point {
	x, y := vp.ToViewport(p.T, p.V)
	return curve.Point{T: x, V: y}
}
