package communication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"servos/define"
)

// Frame 一个通道在某一拍的输出
type Frame struct {
	ChannelID int
	Value     float64
	Timestamp time.Time
}

// Sender 把帧编码并发送到下位机
type Sender interface {
	Send(ctx context.Context, f Frame) error
	IsConnected() bool
	Close() error
	Name() string
}

// RawMessage 发送给 can-bridge 服务的原始 CAN 帧
type RawMessage struct {
	Interface string `json:"interface"` // 目标 CAN 接口名，例如 "can0", "vcan1"
	ID        uint32 `json:"id"`        // CAN 帧的 ID
	Data      []byte `json:"data"`      // CAN 帧的数据负载
}

// CanBridgeClient 实现与 can-bridge 服务的 HTTP 通信
type CanBridgeClient struct {
	serviceURL string
	client     *http.Client
}

func NewCanBridgeClient(serviceURL string) *CanBridgeClient {
	return &CanBridgeClient{
		serviceURL: serviceURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *CanBridgeClient) SendMessage(ctx context.Context, msg RawMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败：%w", err)
	}

	url := fmt.Sprintf("%s/api/can", c.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("can-bridge服务返回错误: %d, %s", resp.StatusCode, string(body))
	}
	return nil
}

// InterfaceStatuses 查询 can-bridge 上各接口是否处于活动状态，known 中的接口默认为 false
func (c *CanBridgeClient) InterfaceStatuses(ctx context.Context, known []string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/status", c.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("获取所有接口状态失败：%w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("can-bridge 服务返回错误：%d", resp.StatusCode)
	}

	var statusResp define.ApiResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("解析状态响应失败：%w", err)
	}

	result := make(map[string]bool)
	for _, ifName := range known {
		result[ifName] = false
	}
	if statusData, ok := statusResp.Data.(map[string]any); ok {
		if interfaces, ok := statusData["interfaces"].(map[string]any); ok {
			for ifName, ifStatus := range interfaces {
				if status, ok := ifStatus.(map[string]any); ok {
					if active, ok := status["active"].(bool); ok {
						result[ifName] = active
					}
				}
			}
		}
	}
	return result, nil
}

// 舵机位置命令字
const cmdSetPosition = 0x01

// ErrChannelID 通道 ID 无法放进一个字节的 CAN 数据
var ErrChannelID = errors.New("通道 ID 超出 CAN 帧可表示的范围 1-255")

// CanBridgeConfig can-bridge 发送器参数
type CanBridgeConfig struct {
	URL       string `json:"url"`
	Interface string `json:"interface"`
	CanID     uint32 `json:"canId"`
}

// CanBridgeSender 把每个通道的数值编码为 [命令, 通道, 数值] 三字节 CAN 帧
type CanBridgeSender struct {
	client    *CanBridgeClient
	iface     string
	canID     uint32
	connected atomic.Bool
}

func NewCanBridgeSender(cfg CanBridgeConfig) *CanBridgeSender {
	if cfg.URL == "" {
		cfg.URL = "http://127.0.0.1:5260"
	}
	if cfg.Interface == "" {
		cfg.Interface = "can0"
	}
	if cfg.CanID == 0 {
		cfg.CanID = 0x27
	}
	s := &CanBridgeSender{client: NewCanBridgeClient(cfg.URL), iface: cfg.Interface, canID: cfg.CanID}
	s.connected.Store(true)
	return s
}

// EncodeFrame 数值四舍五入并限制在 0-255，通道 ID 必须在 1-255 内
func EncodeFrame(f Frame) ([]byte, error) {
	if f.ChannelID < 1 || f.ChannelID > math.MaxUint8 {
		return nil, errors.Wrapf(ErrChannelID, "通道 %d", f.ChannelID)
	}
	v := math.Round(f.Value)
	v = math.Max(0, math.Min(255, v))
	return []byte{cmdSetPosition, byte(f.ChannelID), byte(v)}, nil
}

func (s *CanBridgeSender) Send(ctx context.Context, f Frame) error {
	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	err = s.client.SendMessage(ctx, RawMessage{Interface: s.iface, ID: s.canID, Data: data})
	s.connected.Store(err == nil)
	return err
}

// IsConnected 返回最近一次发送是否成功
func (s *CanBridgeSender) IsConnected() bool { return s.connected.Load() }

// Probe 主动查询 can-bridge 上目标接口的状态
func (s *CanBridgeSender) Probe(ctx context.Context) (bool, error) {
	statuses, err := s.client.InterfaceStatuses(ctx, []string{s.iface})
	if err != nil {
		s.connected.Store(false)
		return false, err
	}
	active := statuses[s.iface]
	s.connected.Store(active)
	return active, nil
}

func (s *CanBridgeSender) Close() error { return nil }

func (s *CanBridgeSender) Name() string { return fmt.Sprintf("can-bridge(%s)", s.iface) }
