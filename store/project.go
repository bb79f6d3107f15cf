// Package store 负责工程文件的读写与自动保存
package store

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"servos/channel"
	"servos/curve"
	"servos/define"
)

// ProjectVersion 当前工程文件格式版本
const ProjectVersion = 1

// ChannelDoc 单个通道的持久化形式
type ChannelDoc struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	Enabled  bool       `json:"enabled"`
	Loop     bool       `json:"loop"`
	LimitMin float64    `json:"limitMin"`
	LimitMax float64    `json:"limitMax"`
	Curve    curve.Data `json:"curve"`
}

// Project 工程文件
type Project struct {
	Version    int          `json:"version"`
	Duration   float64      `json:"duration"`
	Resolution float64      `json:"resolution"`
	NextID     int          `json:"nextId"`
	Channels   []ChannelDoc `json:"channels"`
}

// NewProject 从通道列表生成工程文档
func NewProject(channels []*channel.Channel, duration, resolution float64, nextID int) Project {
	return Project{
		Version:    ProjectVersion,
		Duration:   duration,
		Resolution: resolution,
		NextID:     nextID,
		Channels: lo.Map(channels, func(ch *channel.Channel, _ int) ChannelDoc {
			return ChannelDoc{
				ID:       ch.ID,
				Name:     ch.Name,
				Enabled:  ch.Enabled,
				Loop:     ch.Loop,
				LimitMin: ch.Limits.Min,
				LimitMax: ch.Limits.Max,
				Curve:    ch.Curve.Data(),
			}
		}),
	}
}

// Build 校验工程并重建通道，任何结构问题都返回 ErrCorruptData
func (p Project) Build() ([]*channel.Channel, error) {
	if p.Version > ProjectVersion {
		return nil, errors.Wrapf(curve.ErrCorruptData, "不支持的工程版本 %d", p.Version)
	}
	if !(p.Duration > 0) || !(p.Resolution > 0) {
		return nil, errors.Wrapf(curve.ErrCorruptData, "时长 %v 或分辨率 %v 无效", p.Duration, p.Resolution)
	}
	if n := len(p.Channels); n < define.MinChannelCount || n > define.MaxChannelCount {
		return nil, errors.Wrapf(curve.ErrCorruptData, "通道数量 %d 不在 [%d, %d] 内", n, define.MinChannelCount, define.MaxChannelCount)
	}
	if dup := lo.FindDuplicatesBy(p.Channels, func(d ChannelDoc) int { return d.ID }); len(dup) > 0 {
		return nil, errors.Wrapf(curve.ErrCorruptData, "通道 ID %d 重复", dup[0].ID)
	}

	out := make([]*channel.Channel, 0, len(p.Channels))
	for _, doc := range p.Channels {
		if doc.ID <= 0 {
			return nil, errors.Wrapf(curve.ErrCorruptData, "无效的通道 ID %d", doc.ID)
		}
		if doc.Curve.Duration != p.Duration {
			return nil, errors.Wrapf(curve.ErrCorruptData, "通道 %d 的曲线时长 %v 与工程时长 %v 不一致", doc.ID, doc.Curve.Duration, p.Duration)
		}
		limits := channel.Limits{Min: doc.LimitMin, Max: doc.LimitMax}
		if err := limits.Validate(); err != nil {
			return nil, errors.Wrapf(curve.ErrCorruptData, "通道 %d: %v", doc.ID, err)
		}
		c, err := curve.Load(doc.Curve)
		if err != nil {
			return nil, errors.Wrapf(err, "通道 %d", doc.ID)
		}
		name := doc.Name
		if name == "" {
			name = channel.DefaultName(doc.ID)
		}
		out = append(out, &channel.Channel{
			ID:      doc.ID,
			Name:    name,
			Enabled: doc.Enabled,
			Loop:    doc.Loop,
			Limits:  limits,
			Curve:   c,
		})
	}
	return out, nil
}

// MaxID 工程中最大的通道 ID
func (p Project) MaxID() int {
	return lo.Max(lo.Map(p.Channels, func(d ChannelDoc, _ int) int { return d.ID }))
}
