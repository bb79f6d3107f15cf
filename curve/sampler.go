package curve

import "math"

// Subdivisions 片段采样与命中测试共用的参数细分数
const Subdivisions = 64

// Point 时间-数值平面上的点
type Point struct {
	T float64
	V float64
}

// Cubic 三次贝塞尔，P0/P3 为锚点，P1/P2 为绝对控制点
type Cubic struct {
	P0, P1, P2, P3 Point
}

// Bezier 由相邻锚点和片段的相对控制点计算绝对控制点
func Bezier(start, end Anchor, seg Segment) Cubic {
	span := end.Time - start.Time
	return Cubic{
		P0: Point{T: start.Time, V: start.Value},
		P1: Point{T: start.Time + span*seg.Control1.DT, V: start.Value + seg.Control1.DV},
		P2: Point{T: start.Time + span*seg.Control2.DT, V: end.Value + seg.Control2.DV},
		P3: Point{T: end.Time, V: end.Value},
	}
}

// Eval 计算参数 u 处的点
func (c Cubic) Eval(u float64) Point {
	mu := 1 - u
	a := mu * mu * mu
	b := 3 * mu * mu * u
	d := 3 * mu * u * u
	e := u * u * u
	return Point{
		T: a*c.P0.T + b*c.P1.T + d*c.P2.T + e*c.P3.T,
		V: a*c.P0.V + b*c.P1.V + d*c.P2.V + e*c.P3.V,
	}
}

// Flatten 将 u ∈ [0,1] 均分为 k 段，返回 k+1 个点，两端精确等于锚点
func (c Cubic) Flatten(k int) []Point {
	if k < 1 {
		k = 1
	}
	pts := make([]Point, k+1)
	for i := 1; i < k; i++ {
		pts[i] = c.Eval(float64(i) / float64(k))
	}
	pts[0] = c.P0
	pts[k] = c.P3
	return pts
}

// ValueAt 返回曲线在时间 t 处的数值。
// 时间分量关于 u 不一定单调，因此在细分点里找时间最接近 t 的点，
// 若它与某个相邻点夹住 t 则线性插值，否则直接返回最近点的数值。
func (c Cubic) ValueAt(t float64) float64 {
	if t <= c.P0.T {
		return c.P0.V
	}
	if t >= c.P3.T {
		return c.P3.V
	}
	return valueAt(c.Flatten(Subdivisions), t)
}

func valueAt(pts []Point, t float64) float64 {
	nearest := 0
	best := math.Inf(1)
	for i, p := range pts {
		if d := math.Abs(p.T - t); d < best {
			best = d
			nearest = i
		}
	}
	p := pts[nearest]
	if p.T == t {
		return p.V
	}
	for _, j := range []int{nearest - 1, nearest + 1} {
		if j < 0 || j >= len(pts) {
			continue
		}
		q := pts[j]
		if (p.T-t)*(q.T-t) < 0 {
			return p.V + (q.V-p.V)*(t-p.T)/(q.T-p.T)
		}
	}
	return p.V
}

// Distance 点到曲线细分点的最小欧氏距离，用于命中测试
func (c Cubic) Distance(p Point, k int) float64 {
	best := math.Inf(1)
	for _, q := range c.Flatten(k) {
		if d := math.Hypot(q.T-p.T, q.V-p.V); d < best {
			best = d
		}
	}
	return best
}

// Map 对四个控制点做同一坐标变换，仿射变换下贝塞尔形状不变
func (c Cubic) Map(f func(Point) Point) Cubic {
	return Cubic{P0: f(c.P0), P1: f(c.P1), P2: f(c.P2), P3: f(c.P3)}
}
