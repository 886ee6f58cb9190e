package live

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WsConn is one client session on the gateway.
// Identity fields are attached by the identify event and are only mutated on
// the connection's own read goroutine (under the server lock for readers).
type WsConn struct {
	ConnID string          // 网关内唯一连接 ID
	WS     *websocket.Conn // nil in tests
	Send   chan []byte     // 出站队列（单写协程消费）

	UserID      string // 绑定的平台用户 ID，匿名为空
	IsAdmin     bool
	DisplayName string

	sendMu    sync.RWMutex
	sendDone  bool
	closeOnce sync.Once
}

func newWsConn(connID string, ws *websocket.Conn, sendQueueSize int) *WsConn {
	return &WsConn{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
	}
}

// enqueue 非阻塞投递；队列满或连接已收尾则丢弃，由调用方记录。
func (c *WsConn) enqueue(data []byte) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendDone {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend 只关闭一次，写协程随后收尾底层连接。
func (c *WsConn) closeSend() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.sendDone = true
		close(c.Send)
		c.sendMu.Unlock()
	})
}
