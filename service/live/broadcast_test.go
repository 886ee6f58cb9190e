package live

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdmin(t *testing.T, s *Server, connID, userID string) *WsConn {
	t.Helper()
	c := testConn(s, connID)
	identify(s, c, userID, true, "Host")
	drain(t, c)
	return c
}

func startStream(s *Server, owner *WsConn, title string, loggedInOnly bool) {
	dispatchEvent(s, owner, EvStartStream, map[string]any{
		"title":          title,
		"subtitle":       "weekly",
		"isLoggedInOnly": loggedInOnly,
	})
}

func currentStream(s *Server) *StreamSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

func TestStartStreamRequiresAdmin(t *testing.T) {
	s := newTestServer(nil)
	c := testConn(s, "c1")
	identify(s, c, "u1", false, "Alpha")
	drain(t, c)

	startStream(s, c, "nope", false)

	assert.Nil(t, currentStream(s))
	assert.Empty(t, recvAll(t, c))
}

func TestStartStreamAnnouncesToWaitingViewers(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	v1 := testConn(s, "v1")
	v2 := testConn(s, "v2")
	dispatchEvent(s, v1, EvViewerOnLivePage, map[string]any{})
	dispatchEvent(s, v2, EvViewerOnLivePage, map[string]any{})

	startStream(s, owner, "launch day", false)

	for _, v := range []*WsConn{v1, v2} {
		infos := framesOf(recvAll(t, v), EvStreamInfo)
		require.Len(t, infos, 1)
		assert.Equal(t, "launch day", infos[0].Data["title"])
		assert.Equal(t, "weekly", infos[0].Data["subtitle"])
	}

	reqs := framesOf(recvAll(t, owner), EvNewViewerRequest)
	require.Len(t, reqs, 2, "owner negotiates with each waiting viewer")
	got := map[string]bool{}
	for _, f := range reqs {
		got[f.Data["viewerConnectionId"].(string)] = true
	}
	assert.True(t, got["v1"] && got["v2"])
}

func TestStartStreamDisplacesPriorOwner(t *testing.T) {
	s := newTestServer(nil)
	first := newAdmin(t, s, "a1", "admin1")
	second := newAdmin(t, s, "a2", "admin2")

	startStream(s, first, "morning show", false)
	drain(t, first, second)
	startStream(s, second, "evening show", false)

	ended := framesOf(recvAll(t, first), EvStreamEnded)
	require.Len(t, ended, 1, "displaced owner hears the takeover")

	sess := currentStream(s)
	require.NotNil(t, sess)
	assert.Equal(t, "a2", sess.OwnerConnID)
	assert.Equal(t, "evening show", sess.Title)
}

func TestViewerJoinMidStream(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	startStream(s, owner, "already live", false)
	drain(t, owner)

	late := testConn(s, "v1")
	dispatchEvent(s, late, EvViewerOnLivePage, map[string]any{})

	infos := framesOf(recvAll(t, late), EvStreamInfo)
	require.Len(t, infos, 1, "mid-stream joiner is onboarded immediately")
	reqs := framesOf(recvAll(t, owner), EvNewViewerRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, "v1", reqs[0].Data["viewerConnectionId"])
}

func TestViewerJoinWhileIdleIsSilent(t *testing.T) {
	s := newTestServer(nil)
	v := testConn(s, "v1")

	dispatchEvent(s, v, EvViewerOnLivePage, map[string]any{})

	assert.Empty(t, recvAll(t, v))
	_, _, viewers, _ := s.Stats()
	assert.Equal(t, 1, viewers, "still tracked for a future stream start")
}

func TestLoggedInOnlyStreamHiddenFromAnonymous(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	anon := testConn(s, "v1")
	member := testConn(s, "v2")
	identify(s, member, "u2", false, "Beta")
	dispatchEvent(s, anon, EvViewerOnLivePage, map[string]any{})
	dispatchEvent(s, member, EvViewerOnLivePage, map[string]any{})
	drain(t, owner, anon, member)

	startStream(s, owner, "members only", true)

	assert.Empty(t, framesOf(recvAll(t, anon), EvStreamInfo))
	require.Len(t, framesOf(recvAll(t, member), EvStreamInfo), 1)

	reqs := framesOf(recvAll(t, owner), EvNewViewerRequest)
	require.Len(t, reqs, 1, "no negotiation offered for hidden viewers")
	assert.Equal(t, "v2", reqs[0].Data["viewerConnectionId"])
}

func TestEndStreamByOwnerBroadcasts(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	v := testConn(s, "v1")
	dispatchEvent(s, v, EvViewerOnLivePage, map[string]any{})
	startStream(s, owner, "short lived", false)
	drain(t, owner, v)

	dispatchEvent(s, owner, EvEndStream, map[string]any{})

	assert.Nil(t, currentStream(s))
	for _, c := range []*WsConn{owner, v} {
		require.Len(t, framesOf(recvAll(t, c), EvStreamEnded), 1)
	}
}

func TestEndStreamByNonOwnerIgnored(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	other := newAdmin(t, s, "a2", "admin2")
	startStream(s, owner, "stay up", false)
	drain(t, owner, other)

	dispatchEvent(s, other, EvEndStream, map[string]any{})

	assert.NotNil(t, currentStream(s))
	assert.Empty(t, recvAll(t, owner))
}

// 观众在自己的读协程上反复换身份，同时管理员重启受限直播。
// 观众的登录态必须在锁内定格，-race 下跑这个用例会抓到越锁读取。
func TestStartStreamWhileViewerReidentifies(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	v := testConn(s, "v1")
	dispatchEvent(s, v, EvViewerOnLivePage, map[string]any{})
	drain(t, owner, v)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			identify(s, v, "u1", false, "Alpha")
			identify(s, v, "", false, "")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			startStream(s, owner, "contended", true)
		}
	}()
	wg.Wait()

	sess := currentStream(s)
	require.NotNil(t, sess)
	assert.Equal(t, "a1", sess.OwnerConnID)
}

func TestOwnerDisconnectTearsDownStream(t *testing.T) {
	s := newTestServer(nil)
	owner := newAdmin(t, s, "a1", "admin1")
	viewers := []*WsConn{testConn(s, "v1"), testConn(s, "v2"), testConn(s, "v3")}
	for _, v := range viewers {
		dispatchEvent(s, v, EvViewerOnLivePage, map[string]any{})
	}
	startStream(s, owner, "fragile", false)
	drain(t, viewers...)
	drain(t, owner)

	s.disconnect(owner)

	assert.Nil(t, currentStream(s))
	for _, v := range viewers {
		require.Len(t, framesOf(recvAll(t, v), EvStreamEnded), 1,
			"each viewer hears exactly one teardown")
	}
	_, _, viewerCount, _ := s.Stats()
	assert.Equal(t, 3, viewerCount, "viewer set survives the teardown")
}
