package curve

import "github.com/pkg/errors"

// 曲线结构操作可能返回的错误，调用方通过 errors.Is 判断
var (
	ErrOutOfRange        = errors.New("超出曲线范围")
	ErrDuplicateTime     = errors.New("该时间点已存在锚点")
	ErrNotFound          = errors.New("关键帧或片段不存在")
	ErrBoundaryImmutable = errors.New("边界锚点不可删除或移动")
	ErrOrderViolation    = errors.New("移动后关键帧顺序不再严格递增")
	ErrCorruptData       = errors.New("曲线数据损坏")
)
