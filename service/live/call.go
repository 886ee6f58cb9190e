package live

import (
	"LiveGateway/logger"
	decode "LiveGateway/tools/decode"
)

// 私聊通话握手：invite -> accept -> offer/answer/ice（走信令转发）-> end。
// 服务端只在接通后记一对 conn_id，用于断线时通知对端；其余状态都在客户端。

// handleInitiateCall 管理员邀请指定用户。目标不在线直接丢弃，
// 管理端 UI 依赖在线状态决定是否展示动作。
func (s *Server) handleInitiateCall(_ *LiveContext, f *Frame, c *WsConn) error {
	if !s.isAdminConn(c) {
		return nil
	}
	p, err := decode.DecodeMap[InitiateCallPayload](f.Data)
	if err != nil || p.TargetUserID == "" {
		return err
	}
	targetConn, ok := s.resolve(p.TargetUserID)
	if !ok {
		logger.Infof("[call] invite dropped, user offline user=%s", p.TargetUserID)
		return nil
	}
	adminName := p.AdminName
	if adminName == "" {
		adminName = c.DisplayName
	}
	s.sendTo(targetConn, buildFrame(EvCallInvite, map[string]any{
		"adminConnectionId": c.ConnID,
		"adminName":         adminName,
	}))
	return nil
}

// handleAcceptCall 用户接听；回执带用户连接与身份，管理端据此发 offer。
func (s *Server) handleAcceptCall(_ *LiveContext, f *Frame, c *WsConn) error {
	p, err := decode.DecodeMap[AcceptCallPayload](f.Data)
	if err != nil || p.AdminConnectionID == "" {
		return err
	}

	s.mu.Lock()
	admin := s.byConn[p.AdminConnectionID]
	if admin != nil {
		s.callPeers[c.ConnID] = admin.ConnID
		s.callPeers[admin.ConnID] = c.ConnID
	}
	s.mu.Unlock()

	if admin == nil {
		// 邀请方已下线，接听静默失效
		return nil
	}
	s.sendToConn(admin, buildFrame(EvCallAccepted, map[string]any{
		"userConnectionId":  c.ConnID,
		"applicationUserId": c.UserID,
		"displayName":       c.DisplayName,
	}))
	return nil
}

// handleEndCall 任一方挂断：转发结束信令并抹掉这对连接的通话记录。
func (s *Server) handleEndCall(_ *LiveContext, f *Frame, c *WsConn) error {
	p, err := decode.DecodeMap[RelayPayload](f.Data)
	if err != nil || p.TargetConnectionID == "" {
		return err
	}

	s.mu.Lock()
	delete(s.callPeers, c.ConnID)
	delete(s.callPeers, p.TargetConnectionID)
	s.mu.Unlock()

	s.sendTo(p.TargetConnectionID, buildFrame(EvCallEnded, map[string]any{
		"senderConnectionId": c.ConnID,
	}))
	return nil
}
