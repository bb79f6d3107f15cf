package cli

import (
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"servos/config"
)

// 命令行参数名
const (
	FlagConfig       = "config"
	FlagHost         = "host"
	FlagPort         = "port"
	FlagLogLevel     = "log-level"
	FlagLogFile      = "log-file"
	FlagProject      = "project"
	FlagNoAutoSave   = "no-auto-save"
	FlagChannels     = "channels"
	FlagDuration     = "duration"
	FlagResolution   = "resolution"
	FlagLimitMode    = "limit-mode"
	FlagMissPolicy   = "miss-policy"
	FlagSerialPort   = "serial-port"
	FlagSerialBaud   = "serial-baud"
	FlagSerialOutput = "serial-output"
	FlagCanURL       = "can-url"
	FlagCanInterface = "can-interface"
)

// Flags 所有子命令共用的参数，环境变量可覆盖配置文件
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Aliases: []string{"c"},
			Usage:   "从 `FILE` 加载配置 (JSON 或 YAML)",
			EnvVars: []string{"SERVOS_CONFIG"},
		},
		&cli.StringFlag{Name: FlagHost, Usage: "Web 服务监听地址", EnvVars: []string{"WEB_HOST"}},
		&cli.IntFlag{Name: FlagPort, Usage: "Web 服务的端口", EnvVars: []string{"WEB_PORT"}},
		&cli.StringFlag{Name: FlagLogLevel, Usage: "日志级别 (debug/info/warn/error)", EnvVars: []string{"LOG_LEVEL"}},
		&cli.StringFlag{Name: FlagLogFile, Usage: "日志文件路径，按大小滚动", EnvVars: []string{"LOG_FILE"}},
		&cli.StringFlag{Name: FlagProject, Aliases: []string{"p"}, Usage: "项目文件路径", EnvVars: []string{"SERVOS_PROJECT"}},
		&cli.BoolFlag{Name: FlagNoAutoSave, Usage: "关闭自动保存"},
		&cli.IntFlag{Name: FlagChannels, Usage: "新项目的通道数量 (1-16)"},
		&cli.Float64Flag{Name: FlagDuration, Usage: "时间轴时长 (秒)"},
		&cli.Float64Flag{Name: FlagResolution, Usage: "每秒更新次数"},
		&cli.StringFlag{Name: FlagLimitMode, Usage: "限位模式 (advisory/clamp/reject)"},
		&cli.StringFlag{Name: FlagMissPolicy, Usage: "缓存缺失策略 (resample/skip)"},
		&cli.StringFlag{Name: FlagSerialPort, Usage: "串口设备，例如 /dev/ttyUSB0", EnvVars: []string{"SERIAL_PORT"}},
		&cli.IntFlag{Name: FlagSerialBaud, Usage: "串口波特率", Value: 115200, EnvVars: []string{"SERIAL_BAUD"}},
		&cli.StringFlag{Name: FlagSerialOutput, Usage: "下位机输出方式 (pwm/i2c)", Value: "pwm", EnvVars: []string{"SERIAL_OUTPUT"}},
		&cli.StringFlag{Name: FlagCanURL, Usage: "CAN 服务的 URL", EnvVars: []string{"CAN_SERVICE_URL"}},
		&cli.StringFlag{Name: FlagCanInterface, Usage: "CAN 接口", Value: "can0", EnvVars: []string{"DEFAULT_INTERFACE"}},
	}
}

// ParseConfig 解析配置：先读配置文件（未指定时使用默认配置），再用命令行参数和环境变量覆盖
func ParseConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String(FlagConfig); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.GetDefaultConfig()
	}

	if c.IsSet(FlagHost) {
		cfg.Server.Host = c.String(FlagHost)
	}
	if c.IsSet(FlagPort) {
		cfg.Server.Port = c.Int(FlagPort)
	}
	if c.IsSet(FlagLogLevel) {
		cfg.Log.Level = c.String(FlagLogLevel)
	}
	if c.IsSet(FlagLogFile) {
		cfg.Log.File = c.String(FlagLogFile)
	}
	if c.IsSet(FlagProject) {
		cfg.Project.Path = c.String(FlagProject)
	}
	if c.Bool(FlagNoAutoSave) {
		cfg.Project.AutoSave = false
	}
	if c.IsSet(FlagChannels) {
		cfg.Editor.Channels = c.Int(FlagChannels)
	}
	if c.IsSet(FlagDuration) {
		cfg.Playback.Duration = c.Float64(FlagDuration)
	}
	if c.IsSet(FlagResolution) {
		cfg.Playback.Resolution = c.Float64(FlagResolution)
	}
	if c.IsSet(FlagLimitMode) {
		cfg.Editor.LimitMode = c.String(FlagLimitMode)
	}
	if c.IsSet(FlagMissPolicy) {
		cfg.Playback.MissPolicy = c.String(FlagMissPolicy)
	}

	// 串口与 CAN 参数会替换配置文件中同类型的输出
	if c.IsSet(FlagSerialPort) {
		setTransport(cfg, config.TransportConfig{
			Type: "serial",
			Params: map[string]any{
				"port":     c.String(FlagSerialPort),
				"baudRate": c.Int(FlagSerialBaud),
				"output":   c.String(FlagSerialOutput),
			},
		})
	}
	if c.IsSet(FlagCanURL) {
		setTransport(cfg, config.TransportConfig{
			Type: "can-bridge",
			Params: map[string]any{
				"url":       c.String(FlagCanURL),
				"interface": strings.TrimSpace(c.String(FlagCanInterface)),
			},
		})
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setTransport(cfg *config.Config, t config.TransportConfig) {
	cfg.Transports = lo.Reject(cfg.Transports, func(existing config.TransportConfig, _ int) bool {
		return existing.Type == t.Type
	})
	cfg.Transports = append(cfg.Transports, t)
}
