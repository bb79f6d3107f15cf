package playback

import (
	"time"

	"github.com/montanaflynn/stats"
)

// driftWindow 只保留最近的若干次循环偏差
const driftWindow = 256

// LoopStats 记录每轮实际用时与目标时长的偏差
type LoopStats struct {
	drifts []float64 // 秒
	total  int
}

// DriftSummary 偏差统计，单位毫秒
type DriftSummary struct {
	Loops  int     `json:"loops"`
	LastMs float64 `json:"lastMs"`
	MeanMs float64 `json:"meanMs"`
	StdMs  float64 `json:"stdMs"`
	MaxMs  float64 `json:"maxMs"`
}

func (s *LoopStats) Record(drift time.Duration) {
	s.total++
	s.drifts = append(s.drifts, drift.Seconds())
	if len(s.drifts) > driftWindow {
		s.drifts = s.drifts[len(s.drifts)-driftWindow:]
	}
}

func (s *LoopStats) Reset() {
	s.drifts = nil
	s.total = 0
}

func (s *LoopStats) Summary() DriftSummary {
	out := DriftSummary{Loops: s.total}
	if len(s.drifts) == 0 {
		return out
	}
	data := stats.Float64Data(s.drifts)
	mean, _ := stats.Mean(data)
	std, _ := stats.StandardDeviation(data)
	maxAbs, _ := stats.Max(stats.Float64Data(absAll(s.drifts)))

	out.LastMs = s.drifts[len(s.drifts)-1] * 1000
	out.MeanMs = mean * 1000
	out.StdMs = std * 1000
	out.MaxMs = maxAbs * 1000
	return out
}

func absAll(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		if v < 0 {
			v = -v
		}
		out[i] = v
	}
	return out
}
