package define

// API 响应结构体
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// 通道数量上下限
const (
	MinChannelCount = 1
	MaxChannelCount = 16
)

// 默认的时间轴参数
const (
	DefaultDuration   = 5.0   // 秒
	DefaultResolution = 100.0 // 每秒更新次数
	DefaultBaseline   = 90.0
	DefaultLimitMin   = 0.0
	DefaultLimitMax   = 180.0
)
