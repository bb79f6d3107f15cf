package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"servos/define"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig      `json:"server" yaml:"server"`
	Log        LogConfig         `json:"log" yaml:"log"`
	Playback   PlaybackConfig    `json:"playback" yaml:"playback"`
	Editor     EditorConfig      `json:"editor" yaml:"editor"`
	Project    ProjectConfig     `json:"project" yaml:"project"`
	Transports []TransportConfig `json:"transports" yaml:"transports"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	EnableCORS   bool   `json:"enable_cors" yaml:"enable_cors"`
	StreamBuffer int    `json:"stream_buffer" yaml:"stream_buffer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// PlaybackConfig 时间轴与播放参数
type PlaybackConfig struct {
	Duration   float64 `json:"duration" yaml:"duration"`       // 秒
	Resolution float64 `json:"resolution" yaml:"resolution"`   // 每秒更新次数
	StepScale  float64 `json:"step_scale" yaml:"step_scale"`   // 每拍前进的步长倍数
	MissPolicy string  `json:"miss_policy" yaml:"miss_policy"` // resample 或 skip
}

// EditorConfig 编辑器配置
type EditorConfig struct {
	Channels  int    `json:"channels" yaml:"channels"`     // 新项目的通道数量
	LimitMode string `json:"limit_mode" yaml:"limit_mode"` // advisory / clamp / reject
}

// ProjectConfig 项目文件配置
type ProjectConfig struct {
	Path            string `json:"path" yaml:"path"`
	AutoSave        bool   `json:"auto_save" yaml:"auto_save"`
	AutoSaveDelayMs int    `json:"auto_save_delay_ms" yaml:"auto_save_delay_ms"`
}

// TransportConfig 输出通道配置，Params 交给对应的发送器构造函数解析
type TransportConfig struct {
	Type      string         `json:"type" yaml:"type"`
	QueueSize int            `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// LoadConfig 从文件加载配置，.yaml/.yml 按 YAML 解析，其余按 JSON 解析
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败：%w", err)
	}

	var config Config
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败：%w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(config *Config, configPath string) error {
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("创建配置文件失败：%w", err)
	}
	defer file.Close()

	if isYAML(configPath) {
		encoder := yaml.NewEncoder(file)
		encoder.SetIndent(2)
		if err := encoder.Encode(config); err != nil {
			return fmt.Errorf("保存配置文件失败：%w", err)
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("保存配置文件失败：%w", err)
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         9099,
			EnableCORS:   true,
			StreamBuffer: 256,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Playback: PlaybackConfig{
			Duration:   define.DefaultDuration,
			Resolution: define.DefaultResolution,
			StepScale:  1,
			MissPolicy: define.MISS_POLICY_RESAMPLE.String(),
		},
		Editor: EditorConfig{
			Channels:  1,
			LimitMode: define.LIMIT_MODE_ADVISORY.String(),
		},
		Project: ProjectConfig{
			Path:            "project.json",
			AutoSave:        true,
			AutoSaveDelayMs: 1000,
		},
		Transports: []TransportConfig{
			{Type: "log"},
		},
	}
}

// ApplyDefaults 补齐未设置的字段
func (c *Config) ApplyDefaults() {
	def := GetDefaultConfig()

	// 设置默认值
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.StreamBuffer <= 0 {
		c.Server.StreamBuffer = def.Server.StreamBuffer
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = def.Log.MaxBackups
	}
	if c.Playback.Duration == 0 {
		c.Playback.Duration = def.Playback.Duration
	}
	if c.Playback.Resolution == 0 {
		c.Playback.Resolution = def.Playback.Resolution
	}
	if c.Playback.StepScale == 0 {
		c.Playback.StepScale = def.Playback.StepScale
	}
	if c.Playback.MissPolicy == "" {
		c.Playback.MissPolicy = def.Playback.MissPolicy
	}
	if c.Editor.Channels == 0 {
		c.Editor.Channels = def.Editor.Channels
	}
	if c.Editor.LimitMode == "" {
		c.Editor.LimitMode = def.Editor.LimitMode
	}
	if c.Project.Path == "" {
		c.Project.Path = def.Project.Path
	}
	if c.Project.AutoSaveDelayMs <= 0 {
		c.Project.AutoSaveDelayMs = def.Project.AutoSaveDelayMs
	}
	if len(c.Transports) == 0 {
		c.Transports = def.Transports
	}
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("无效的端口：%d", c.Server.Port)
	}
	if !(c.Playback.Duration > 0) {
		return fmt.Errorf("时长必须为正数：%v", c.Playback.Duration)
	}
	if !(c.Playback.Resolution > 0) {
		return fmt.Errorf("分辨率必须为正数：%v", c.Playback.Resolution)
	}
	if !(c.Playback.StepScale > 0) {
		return fmt.Errorf("步长倍数必须为正数：%v", c.Playback.StepScale)
	}
	if define.MissPolicyFromString(c.Playback.MissPolicy) == define.MISS_POLICY_UNKNOWN {
		return fmt.Errorf("未知的缓存缺失策略：%s", c.Playback.MissPolicy)
	}
	if define.LimitModeFromString(c.Editor.LimitMode) == define.LIMIT_MODE_UNKNOWN {
		return fmt.Errorf("未知的限位模式：%s", c.Editor.LimitMode)
	}
	if c.Editor.Channels < define.MinChannelCount || c.Editor.Channels > define.MaxChannelCount {
		return fmt.Errorf("通道数量必须在 %d 到 %d 之间：%d",
			define.MinChannelCount, define.MaxChannelCount, c.Editor.Channels)
	}
	for i, t := range c.Transports {
		if strings.TrimSpace(t.Type) == "" {
			return fmt.Errorf("第 %d 个输出未指定类型", i)
		}
	}
	return nil
}

// Addr 服务监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
