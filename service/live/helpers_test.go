package live

import (
	"encoding/json"
	"testing"
	"time"

	"LiveGateway/service/settings"

	"github.com/stretchr/testify/require"
)

func newTestServer(st settings.Store) *Server {
	if st == nil {
		st = settings.NewMemoryStore()
	}
	return NewServer(Conf{
		GatewayID:     "gw-test",
		SendQueueSize: 64,
		Clock:         func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}, st)
}

func chatEnabledStore() *settings.MemoryStore {
	st := settings.NewMemoryStore()
	st.Set(settings.KeyChatEnabled, "true")
	return st
}

func testConn(s *Server, id string) *WsConn {
	c := newWsConn(id, nil, s.conf.SendQueueSize)
	s.addConn(c)
	return c
}

func dispatchEvent(s *Server, c *WsConn, event string, data map[string]any) {
	s.dispatch(&Frame{Event: event, Data: data}, c)
}

func identify(s *Server, c *WsConn, userID string, isAdmin bool, name string) {
	dispatchEvent(s, c, EvIdentify, map[string]any{
		"applicationUserId": userID,
		"isAdministrator":   isAdmin,
		"displayName":       name,
	})
}

// recvAll 清空连接出站队列并解码（handler 都是同步入队，无需等待）。
func recvAll(t *testing.T, c *WsConn) []*Frame {
	t.Helper()
	var out []*Frame
	for {
		select {
		case data := <-c.Send:
			f := &Frame{}
			require.NoError(t, json.Unmarshal(data, f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOf(frames []*Frame, event string) []*Frame {
	var out []*Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func drain(t *testing.T, conns ...*WsConn) {
	t.Helper()
	for _, c := range conns {
		recvAll(t, c)
	}
}
