package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceNotifiedOnDisconnect(t *testing.T) {
	s := newTestServer(nil)
	a1 := testConn(s, "a1")
	a2 := testConn(s, "a2")
	identify(s, a1, "admin1", true, "Ops")
	identify(s, a2, "admin2", true, "Ops2")

	c1 := testConn(s, "c1")
	identify(s, c1, "u1", false, "Alpha")
	drain(t, a1, a2, c1)

	s.disconnect(c1)

	for _, admin := range []*WsConn{a1, a2} {
		updates := framesOf(recvAll(t, admin), EvUserStatusUpdate)
		require.Len(t, updates, 1, "exactly one status update per administrator")
		assert.Equal(t, "u1", updates[0].Data["userId"])
		assert.Equal(t, false, updates[0].Data["isConnected"])
	}
}

func TestPresenceNotifiedOnIdentify(t *testing.T) {
	s := newTestServer(nil)
	a1 := testConn(s, "a1")
	identify(s, a1, "admin1", true, "Ops")
	drain(t, a1)

	c1 := testConn(s, "c1")
	identify(s, c1, "u1", false, "Alpha")

	updates := framesOf(recvAll(t, a1), EvUserStatusUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "u1", updates[0].Data["userId"])
	assert.Equal(t, true, updates[0].Data["isConnected"])
}

func TestCheckUserStatusOnDemand(t *testing.T) {
	s := newTestServer(nil)
	a1 := testConn(s, "a1")
	identify(s, a1, "admin1", true, "Ops")
	drain(t, a1)

	dispatchEvent(s, a1, EvCheckUserStatus, map[string]any{"targetUserId": "u9"})

	updates := framesOf(recvAll(t, a1), EvUserStatusUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "u9", updates[0].Data["userId"])
	assert.Equal(t, false, updates[0].Data["isConnected"])
}

func TestCheckUserStatusIgnoredForNonAdmin(t *testing.T) {
	s := newTestServer(nil)
	a1 := testConn(s, "a1")
	identify(s, a1, "admin1", true, "Ops")
	c1 := testConn(s, "c1")
	identify(s, c1, "u1", false, "Alpha")
	drain(t, a1, c1)

	dispatchEvent(s, c1, EvCheckUserStatus, map[string]any{"targetUserId": "u9"})

	assert.Empty(t, framesOf(recvAll(t, a1), EvUserStatusUpdate))
}

func TestDashboardStats(t *testing.T) {
	s := newTestServer(nil)
	a1 := testConn(s, "a1")
	identify(s, a1, "admin1", true, "Ops")
	v1 := testConn(s, "v1")
	dispatchEvent(s, v1, EvViewerOnLivePage, map[string]any{})
	drain(t, a1, v1)

	dispatchEvent(s, a1, EvDashboardStats, map[string]any{})

	replies := framesOf(recvAll(t, a1), EvDashboardReply)
	require.Len(t, replies, 1)
	assert.EqualValues(t, 1, replies[0].Data["viewerCount"])
	assert.EqualValues(t, 2, replies[0].Data["connectionCount"])
}
