package define

import "strings"

// ChangeKind 曲线变更事件类型
type ChangeKind string

const (
	ChangeInsert   ChangeKind = "insert"
	ChangeDelete   ChangeKind = "delete"
	ChangeMove     ChangeKind = "move"
	ChangeControl  ChangeKind = "control"
	ChangeBaseline ChangeKind = "baseline"
	ChangeChannel  ChangeKind = "channel"
	ChangeLoad     ChangeKind = "load"
)

// LimitMode 数值上下限的处理方式
type LimitMode int

const (
	LIMIT_MODE_UNKNOWN  LimitMode = iota
	LIMIT_MODE_ADVISORY // 仅用于显示，不做限制
	LIMIT_MODE_CLAMP    // 超出范围时钳制到边界
	LIMIT_MODE_REJECT   // 超出范围时拒绝
)

func (m LimitMode) String() string {
	switch m {
	case LIMIT_MODE_ADVISORY:
		return "advisory"
	case LIMIT_MODE_CLAMP:
		return "clamp"
	case LIMIT_MODE_REJECT:
		return "reject"
	}
	return "unknown"
}

func LimitModeFromString(s string) LimitMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "advisory":
		return LIMIT_MODE_ADVISORY
	case "clamp":
		return LIMIT_MODE_CLAMP
	case "reject":
		return LIMIT_MODE_REJECT
	}
	return LIMIT_MODE_UNKNOWN
}

// MissPolicy 播放中缓存失效时的处理策略
type MissPolicy int

const (
	MISS_POLICY_UNKNOWN  MissPolicy = iota
	MISS_POLICY_RESAMPLE // 同步重新采样后发送
	MISS_POLICY_SKIP     // 跳过本次发送，下一拍前重新采样
)

func (p MissPolicy) String() string {
	switch p {
	case MISS_POLICY_RESAMPLE:
		return "resample"
	case MISS_POLICY_SKIP:
		return "skip"
	}
	return "unknown"
}

func MissPolicyFromString(s string) MissPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "resample":
		return MISS_POLICY_RESAMPLE
	case "skip":
		return MISS_POLICY_SKIP
	}
	return MISS_POLICY_UNKNOWN
}

// OutputMode 下位机输出方式
type OutputMode string

const (
	OUTPUT_PWM OutputMode = "pwm"
	OUTPUT_I2C OutputMode = "i2c"
)

func OutputModeFromString(s string) (OutputMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pwm":
		return OUTPUT_PWM, true
	case "i2c":
		return OUTPUT_I2C, true
	}
	return "", false
}
