package store

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable() table.Writer {
	t := table.NewWriter()
	// 表头保留通道名原本的大小写
	t.Style().Format.Header = text.FormatDefault
	return t
}

// String 以表格列出工程中的每个通道
func (p Project) String() string {
	t := newTable()
	t.SetTitle(fmt.Sprintf("时长 %.2fs, 分辨率 %.0f/s", p.Duration, p.Resolution))
	t.AppendHeader(table.Row{"ID", "Name", "Enabled", "Loop", "Limits", "Baseline", "Keyframes", "Segments"})
	for _, ch := range p.Channels {
		t.AppendRow(table.Row{
			ch.ID,
			ch.Name,
			ch.Enabled,
			ch.Loop,
			fmt.Sprintf("[%.1f, %.1f]", ch.LimitMin, ch.LimitMax),
			fmt.Sprintf("%.2f", ch.Curve.Baseline),
			len(ch.Curve.Keyframes),
			len(ch.Curve.Segments),
		})
	}
	return t.Render()
}

// SamplesTable 每个通道在 [0, duration] 上等间隔采样 n 个点，按时间逐行列出
func (p Project) SamplesTable(n int) (string, error) {
	channels, err := p.Build()
	if err != nil {
		return "", err
	}
	if n < 2 {
		n = 2
	}

	header := table.Row{"t (s)"}
	columns := make([][]float64, 0, len(channels))
	for _, ch := range channels {
		header = append(header, ch.Name)
		columns = append(columns, ch.Curve.SampleTable(n))
	}

	t := newTable()
	t.AppendHeader(header)
	for k := 0; k < n; k++ {
		row := table.Row{fmt.Sprintf("%.3f", p.Duration*float64(k)/float64(n-1))}
		for _, col := range columns {
			row = append(row, fmt.Sprintf("%.2f", col[k]))
		}
		t.AppendRow(row)
	}
	return t.Render(), nil
}
