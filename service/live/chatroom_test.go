package live

import (
	"context"
	"fmt"
	"testing"

	"LiveGateway/service/settings"
	errs "LiveGateway/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendChat(s *Server, c *WsConn, text string) {
	dispatchEvent(s, c, EvSendChatMessage, map[string]any{"message": text})
}

func rejections(t *testing.T, c *WsConn) []string {
	t.Helper()
	var out []string
	for _, f := range framesOf(recvAll(t, c), EvChatRejected) {
		out = append(out, f.Data["reason"].(string))
	}
	return out
}

func TestChatRejectedWhenDisabled(t *testing.T) {
	tests := []struct {
		name  string
		setup func(st *settings.MemoryStore)
	}{
		{name: "flag false", setup: func(st *settings.MemoryStore) {
			st.Set(settings.KeyChatEnabled, "false")
		}},
		{name: "flag never configured", setup: func(st *settings.MemoryStore) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := settings.NewMemoryStore()
			tt.setup(st)
			s := newTestServer(st)
			c := testConn(s, "c1")

			sendChat(s, c, "hello")

			assert.Equal(t, []string{ReasonChatDisabled}, rejections(t, c))
			_, _, _, chatLen := s.Stats()
			assert.Zero(t, chatLen)
		})
	}
}

func TestChatRejectedWhenSettingsUnavailable(t *testing.T) {
	s := newTestServer(failingStore{})
	c := testConn(s, "c1")

	sendChat(s, c, "hello")

	// 配置取不到 => 按关闭处理（fail-closed）
	assert.Equal(t, []string{ReasonChatDisabled}, rejections(t, c))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*settings.Setting, error) {
	return nil, errs.New("settings backend down").Wrap()
}

func TestChatLoggedInOnlyMode(t *testing.T) {
	st := chatEnabledStore()
	st.Set(settings.KeyChatMode, "logged_in")
	s := newTestServer(st)

	anon := testConn(s, "c1")
	sendChat(s, anon, "hi")
	assert.Equal(t, []string{ReasonMustLogIn}, rejections(t, anon))

	member := testConn(s, "c2")
	identify(s, member, "u1", false, "Alpha")
	drain(t, member)
	sendChat(s, member, "hi")
	assert.Empty(t, rejections(t, member))
}

func TestForbiddenKeywordSubstringMatch(t *testing.T) {
	st := chatEnabledStore()
	st.Set(settings.KeyForbiddenKeywords, "ass, spamword")
	s := newTestServer(st)
	c := testConn(s, "c1")

	// 子串匹配：关键词 "ass" 连 "classical" 一起挡掉
	sendChat(s, c, "I love classical music")
	assert.Equal(t, []string{ReasonForbidden}, rejections(t, c))

	_, _, _, chatLen := s.Stats()
	assert.Zero(t, chatLen, "rejected submissions must not touch the buffer")
}

func TestChatBufferBoundAndOrder(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	c := testConn(s, "c1")
	identify(s, c, "u1", false, "Alpha")
	drain(t, c)

	for i := 0; i < 5; i++ {
		sendChat(s, c, fmt.Sprintf("msg-%d", i))
	}
	snap := s.snapshotChat()
	require.Len(t, snap, 5)
	for i, m := range snap {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Text, "insertion order")
	}

	for i := 5; i < 105; i++ {
		sendChat(s, c, fmt.Sprintf("msg-%d", i))
	}
	snap = s.snapshotChat()
	require.Len(t, snap, 100, "buffer keeps only the most recent 100")
	assert.Equal(t, "msg-5", snap[0].Text, "oldest entries evicted first")
	assert.Equal(t, "msg-104", snap[99].Text)
}

func TestChatBroadcastToAllConnections(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	sender := testConn(s, "c1")
	other := testConn(s, "c2")

	sendChat(s, sender, "hello room")

	for _, c := range []*WsConn{sender, other} {
		msgs := framesOf(recvAll(t, c), EvNewChatMessage)
		require.Len(t, msgs, 1)
	}
}

func TestChatGuestDisplayNameFallback(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	c := testConn(s, "conn-123456789")

	sendChat(s, c, "anonymous here")

	snap := s.snapshotChat()
	require.Len(t, snap, 1)
	assert.Equal(t, "guest-456789", snap[0].DisplayName)
	assert.Equal(t, "conn-123456789", snap[0].SenderID)
	assert.NotEmpty(t, snap[0].ID)
	assert.NotEmpty(t, snap[0].Timestamp)
}

func TestRequestHistoryGoesToRequesterOnly(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	sender := testConn(s, "c1")
	sendChat(s, sender, "one")
	sendChat(s, sender, "two")

	late := testConn(s, "c2")
	dispatchEvent(s, late, EvRequestChatHistory, map[string]any{})

	hist := framesOf(recvAll(t, late), EvChatHistory)
	require.Len(t, hist, 1)
	msgs := hist[0].Data["messages"].([]any)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "one", first["text"])

	assert.Empty(t, framesOf(recvAll(t, sender), EvChatHistory))
}

func TestClearChatByNonAdminIsNoop(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	c := testConn(s, "c1")
	sendChat(s, c, "keep me")
	drain(t, c)

	dispatchEvent(s, c, EvClearChatHistory, map[string]any{})

	_, _, _, chatLen := s.Stats()
	assert.Equal(t, 1, chatLen, "non-admin purge must not touch the buffer")
	assert.Empty(t, recvAll(t, c))
}

func TestClearChatByAdminRebroadcastsEmptyHistory(t *testing.T) {
	s := newTestServer(chatEnabledStore())
	admin := testConn(s, "a1")
	identify(s, admin, "admin1", true, "Ops")
	c := testConn(s, "c1")
	sendChat(s, c, "to be purged")
	drain(t, admin, c)

	dispatchEvent(s, admin, EvClearChatHistory, map[string]any{})

	_, _, _, chatLen := s.Stats()
	assert.Zero(t, chatLen)
	for _, conn := range []*WsConn{admin, c} {
		hist := framesOf(recvAll(t, conn), EvChatHistory)
		require.Len(t, hist, 1, "every client view clears in lockstep")
		msgs := hist[0].Data["messages"].([]any)
		assert.Empty(t, msgs)
	}
}
