package live

import (
	decode "LiveGateway/tools/decode"
)

// notifyUserStatus 向所有管理员连接推送某用户的在线状态。
// 尽力而为：个别管理员投递失败不回传错误。
func (s *Server) notifyUserStatus(userID string) {
	_, connected := s.resolve(userID)
	f := buildFrame(EvUserStatusUpdate, map[string]any{
		"userId":      userID,
		"isConnected": connected,
	})
	data, err := f.Encode()
	if err != nil {
		return
	}
	s.mu.RLock()
	targets := make([]*WsConn, 0, len(s.admins))
	for _, a := range s.admins {
		targets = append(targets, a)
	}
	s.mu.RUnlock()
	for _, a := range targets {
		_ = a.enqueue(data)
	}
}

// handleCheckUserStatus 管理员在通话 UI 选中目标时的即时状态读取。
func (s *Server) handleCheckUserStatus(_ *LiveContext, f *Frame, c *WsConn) error {
	if !s.isAdminConn(c) {
		return nil
	}
	p, err := decode.DecodeMap[TargetUserPayload](f.Data)
	if err != nil || p.TargetUserID == "" {
		return err
	}
	s.notifyUserStatus(p.TargetUserID)
	return nil
}

// Stats 当前进程快照，驱动仪表盘与 /admin/stats。
func (s *Server) Stats() (conns, admins, viewers, chatLen int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn), len(s.admins), len(s.viewers), len(s.history)
}

func (s *Server) handleDashboardStats(_ *LiveContext, _ *Frame, c *WsConn) error {
	if !s.isAdminConn(c) {
		return nil
	}
	conns, admins, viewers, chatLen := s.Stats()
	s.sendToConn(c, buildFrame(EvDashboardReply, map[string]any{
		"viewerCount":     viewers,
		"connectionCount": conns,
		"adminCount":      admins,
		"chatBufferSize":  chatLen,
	}))
	return nil
}
