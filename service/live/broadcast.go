package live

import (
	"LiveGateway/logger"
	"LiveGateway/service/settings"
	decode "LiveGateway/tools/decode"
)

// StreamSession 进程内至多一个的通用直播会话。
type StreamSession struct {
	OwnerConnID    string
	Title          string
	Subtitle       string
	IsLoggedInOnly bool
}

func streamInfoFrame(sess *StreamSession) *Frame {
	return buildFrame(EvStreamInfo, map[string]any{
		"title":          sess.Title,
		"subtitle":       sess.Subtitle,
		"isLoggedInOnly": sess.IsLoggedInOnly,
	})
}

// audienceEntry 在锁内定格的观众快照。身份字段由各连接自己的读协程
// 在 s.mu 下改写，锁外只能用这里抄出来的副本。
type audienceEntry struct {
	conn     *WsConn
	loggedIn bool
}

// streamVisibleTo 访问限制：受限直播不对匿名观众公告。
// 会话标记和平台设置任一限制即生效；设置读取失败按不受限处理（公告
// 不泄露媒体，真正的拉流协商仍在广播端）。
func (s *Server) streamVisibleTo(sess *StreamSession, loggedIn bool) bool {
	if loggedIn {
		return true
	}
	if sess.IsLoggedInOnly {
		return false
	}
	visibility, err := s.getSettingValue(settings.KeyStreamVisibility)
	if err != nil {
		logger.Warnf("[stream] visibility setting unavailable: %v", err)
		return true
	}
	return visibility != "logged_in"
}

// handleStartStream Idle -> Live。已有会话时后启动者胜出，但被顶掉的
// 属主会先收到 stream-ended，不再无声换人。
func (s *Server) handleStartStream(_ *LiveContext, f *Frame, c *WsConn) error {
	if !s.isAdminConn(c) {
		return nil
	}
	p, err := decode.DecodeMap[StartStreamPayload](f.Data)
	if err != nil {
		return err
	}

	sess := &StreamSession{
		OwnerConnID:    c.ConnID,
		Title:          p.Title,
		Subtitle:       p.Subtitle,
		IsLoggedInOnly: p.IsLoggedInOnly,
	}

	s.mu.Lock()
	var displaced string
	if s.stream != nil && s.stream.OwnerConnID != c.ConnID {
		displaced = s.stream.OwnerConnID
	}
	s.stream = sess
	audience := make([]audienceEntry, 0, len(s.viewers))
	for _, v := range s.viewers {
		if v.ConnID != c.ConnID {
			audience = append(audience, audienceEntry{conn: v, loggedIn: v.UserID != ""})
		}
	}
	s.mu.Unlock()

	if displaced != "" {
		s.sendTo(displaced, buildFrame(EvStreamEnded, nil))
	}

	// 已在直播页的观众：推会话信息，并让属主对每个观众发起协商。
	for _, v := range audience {
		if !s.streamVisibleTo(sess, v.loggedIn) {
			continue
		}
		s.sendToConn(v.conn, streamInfoFrame(sess))
		s.sendToConn(c, buildFrame(EvNewViewerRequest, map[string]any{
			"viewerConnectionId": v.conn.ConnID,
		}))
	}
	logger.Infof("[stream] live owner=%s title=%q viewers=%d", c.ConnID, p.Title, len(audience))
	return nil
}

// handleViewerJoin 观众进直播页；若正在直播则立刻补发会话信息并
// 通知属主发起对该观众的协商，中途加入不必等下一次 start。
func (s *Server) handleViewerJoin(_ *LiveContext, _ *Frame, c *WsConn) error {
	s.mu.Lock()
	s.viewers[c.ConnID] = c
	sess := s.stream
	loggedIn := c.UserID != ""
	s.mu.Unlock()

	if sess == nil || sess.OwnerConnID == c.ConnID {
		return nil
	}
	if !s.streamVisibleTo(sess, loggedIn) {
		return nil
	}
	s.sendToConn(c, streamInfoFrame(sess))
	s.sendTo(sess.OwnerConnID, buildFrame(EvNewViewerRequest, map[string]any{
		"viewerConnectionId": c.ConnID,
	}))
	return nil
}

func (s *Server) handleViewerLeave(_ *LiveContext, _ *Frame, c *WsConn) error {
	s.mu.Lock()
	delete(s.viewers, c.ConnID)
	s.mu.Unlock()
	return nil
}

// handleEndStream 属主主动收播。广播给所有连接：不跟踪谁需要知道，
// 没在看的客户端忽略即可。
func (s *Server) handleEndStream(_ *LiveContext, _ *Frame, c *WsConn) error {
	s.mu.Lock()
	if s.stream == nil || s.stream.OwnerConnID != c.ConnID {
		s.mu.Unlock()
		return nil
	}
	s.stream = nil
	s.mu.Unlock()

	s.broadcastAll(buildFrame(EvStreamEnded, nil))
	logger.Infof("[stream] ended owner=%s", c.ConnID)
	return nil
}
