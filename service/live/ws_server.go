package live

import (
	"net"
	"net/http"
	"time"

	"LiveGateway/logger"
	ids "LiveGateway/tools/ids"
	"LiveGateway/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

// ---- 心跳参数 ----
const (
	pingInterval = 25 * time.Second
	pongWait     = 75 * time.Second
	writeWait    = 10 * time.Second
)

// HandleWS ===== WebSocket 入口 =====
// 每个客户端一条连接，连上即回 connected 帧（带分配的连接 ID），随后
// 所有领域事件都按事件名走 dispatcher。
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade websocket error: %v", err)
		return
	}

	wc := newWsConn(ids.GenerateString(), ws, s.conf.SendQueueSize)
	s.addConn(wc)
	logger.Infof("[WS] connected conn=%s remote=%s", wc.ConnID, ws.RemoteAddr())

	s.sendToConn(wc, buildFrame(EvConnected, map[string]any{
		"connectionId": wc.ConnID,
		"gatewayId":    s.conf.GatewayID,
	}))

	// writePump 的 defer 先于 SafeGo 的 recover 执行，done 一定会被关闭
	done := make(chan struct{})
	safe.SafeGo(func() { s.writePump(wc, done) })

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// ---- 读循环：只读不写；出错即退出（写协程收尾） ----
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed conn=%s err=%v", wc.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout conn=%s err=%v", wc.ConnID, rerr)
			} else {
				logger.Infof("[WS] read err conn=%s err=%v", wc.ConnID, rerr)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Warnf("[WS] bad frame conn=%s err=%v sample=%q", wc.ConnID, perr, sample)
			continue
		}

		s.dispatch(frame, wc)
	}

	// ---- 退出阶段：统一走 disconnect，注销、收播、通知对端 ----
	s.disconnect(wc)
	wc.closeSend()
	<-done
}

// writePump 单写协程：业务帧 + 周期 ping，退出时发 Close 并关底层连接。
func (s *Server) writePump(c *WsConn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WS.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.WS.Close()
		close(done)
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				return
			}
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[WS] write err conn=%s err=%v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			if err := c.WS.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Infof("[WS] ping err conn=%s err=%v", c.ConnID, err)
				return
			}
		}
	}
}
