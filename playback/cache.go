package playback

import (
	"math"

	"servos/curve"
)

// Cache 单个通道预先计算好的采样表
type Cache struct {
	samples  []float64
	duration float64
	valid    bool
}

// SampleCount 给定分辨率与时长时采样表的点数，至少为 2
func SampleCount(resolution, duration float64) int {
	return max(2, int(math.Round(resolution*duration)))
}

func (c *Cache) rebuild(cv *curve.Curve, resolution float64) {
	c.duration = cv.Duration()
	c.samples = cv.SampleTable(SampleCount(resolution, c.duration))
	c.valid = true
}

func (c *Cache) Valid() bool { return c != nil && c.valid }

func (c *Cache) Len() int { return len(c.samples) }

// At 取 floor(t/duration × (N−1)) 处的采样值
func (c *Cache) At(t float64) float64 {
	n := len(c.samples)
	idx := int(math.Floor(t / c.duration * float64(n-1)))
	idx = max(0, min(n-1, idx))
	return c.samples[idx]
}
