package communication

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"servos/define"
)

// SerialConfig 串口发送器参数
type SerialConfig struct {
	Port      string `json:"port"`
	BaudRate  int    `json:"baudRate"`
	Output    string `json:"output"`    // pwm 或 i2c
	Precision int    `json:"precision"` // 数值保留的小数位数
}

// SerialSender 逐行发送 "<通道>,<数值>\n"
type SerialSender struct {
	port      io.WriteCloser
	portName  string
	precision int
	mutex     sync.Mutex
	closed    bool
	logger    *zap.SugaredLogger
}

// OpenSerial 打开串口并发送下位机的初始化命令
func OpenSerial(cfg SerialConfig, logger *zap.SugaredLogger) (*SerialSender, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("未指定串口")
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("无法打开串口 %s：%w", cfg.Port, err)
	}
	s, err := NewSerialSender(port, cfg, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	logger.Infof("✅ 串口已连接: %s (波特率 %d)", cfg.Port, cfg.BaudRate)
	return s, nil
}

// NewSerialSender 在已打开的端口上建立发送器，先切换输入源和输出方式
func NewSerialSender(port io.WriteCloser, cfg SerialConfig, logger *zap.SugaredLogger) (*SerialSender, error) {
	output, ok := define.OutputModeFromString(cfg.Output)
	if !ok {
		return nil, fmt.Errorf("未知的输出方式: %s", cfg.Output)
	}
	s := &SerialSender{port: port, portName: cfg.Port, precision: max(cfg.Precision, 0), logger: logger}
	for _, cmd := range []string{"switch input serial\n", "switch output " + string(output) + "\n"} {
		if _, err := io.WriteString(port, cmd); err != nil {
			return nil, fmt.Errorf("发送初始化命令失败：%w", err)
		}
	}
	return s, nil
}

// FormatLine 编码一行串口数据
func FormatLine(f Frame, precision int) string {
	return strconv.Itoa(f.ChannelID) + "," + strconv.FormatFloat(f.Value, 'f', precision, 64) + "\n"
}

func (s *SerialSender) Send(_ context.Context, f Frame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("串口 %s 已关闭", s.portName)
	}
	if _, err := io.WriteString(s.port, FormatLine(f, s.precision)); err != nil {
		return fmt.Errorf("写入串口失败：%w", err)
	}
	return nil
}

func (s *SerialSender) IsConnected() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return !s.closed
}

func (s *SerialSender) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.logger != nil {
		s.logger.Infof("👋 串口已关闭: %s", s.portName)
	}
	return s.port.Close()
}

func (s *SerialSender) Name() string { return "serial(" + s.portName + ")" }

// ListSerialPorts 列出系统中可用的串口
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
