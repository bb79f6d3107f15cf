package api

import (
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"servos/playback"
)

// Hub 把播放采样分发给 SSE 连接。Publish 在调度器线程上调用，不能阻塞，慢连接的采样直接丢弃。
type Hub struct {
	mutex   sync.Mutex
	subs    map[int]chan playback.Sample
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{subs: make(map[int]chan playback.Sample), buffer: buffer}
}

func (h *Hub) Publish(sample playback.Sample) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- sample:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe 返回采样通道和取消函数；Hub 关闭后通道也会被关闭
func (h *Hub) Subscribe() (<-chan playback.Sample, func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	ch := make(chan playback.Sample, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	return ch, func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.subs)
}

func (h *Hub) Dropped() int64 { return h.dropped.Load() }

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// handleStream 以 SSE 推送播放采样，事件名为 sample
func (s *Server) handleStream(c *gin.Context) {
	samples, cancel := s.hub.Subscribe()
	defer cancel()

	// 先把响应头发出去，客户端无需等到第一个采样
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	s.logger.Debugf("📡 新的采样订阅 (当前 %d 个)", s.hub.Len())
	c.Stream(func(w io.Writer) bool {
		select {
		case sample, ok := <-samples:
			if !ok {
				return false
			}
			c.SSEvent("sample", sample)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
