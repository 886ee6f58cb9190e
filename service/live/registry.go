package live

import (
	"LiveGateway/logger"
	midsec "LiveGateway/middleware/security"
	decode "LiveGateway/tools/decode"
)

// 连接注册表：applicationUserId <-> connId 双向 1:1。
// 同一用户重复 identify 时新连接胜出，同一连接换身份时旧绑定退役。

// bindLocked 覆盖该用户和该连接的既有绑定。
func (s *Server) bindLocked(userID, connID string) {
	if old, ok := s.userToConn[userID]; ok && old != connID {
		delete(s.connToUser, old)
	}
	if prev, ok := s.connToUser[connID]; ok && prev != userID {
		delete(s.userToConn, prev)
	}
	s.userToConn[userID] = connID
	s.connToUser[connID] = userID
}

// resolve 查询当前在线连接。
func (s *Server) resolve(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connID, ok := s.userToConn[userID]
	return connID, ok
}

// unbindConnLocked 按连接反查用户并拆除双向绑定，返回退役的用户 ID。
func (s *Server) unbindConnLocked(connID string) (string, bool) {
	userID, ok := s.connToUser[connID]
	if !ok {
		return "", false
	}
	delete(s.connToUser, connID)
	if s.userToConn[userID] == connID {
		delete(s.userToConn, userID)
	}
	return userID, true
}

// handleIdentify 绑定身份、维护管理员集合、触发上线通知。
func (s *Server) handleIdentify(_ *LiveContext, f *Frame, c *WsConn) error {
	p, err := decode.DecodeMap[IdentifyPayload](f.Data)
	if err != nil {
		return err
	}

	userID := p.ApplicationUserID
	isAdmin := p.IsAdministrator
	displayName := p.DisplayName

	// 配置了密钥时自报身份不再生效：token 校验失败按匿名处理。
	if secret := s.conf.JWTSecret; len(secret) > 0 {
		claims, verr := midsec.VerifyToken(p.Token, secret)
		if verr != nil {
			logger.Warnf("[identify] token rejected conn=%s err=%v", c.ConnID, verr)
			userID, isAdmin = "", false
		} else {
			userID = claims.UserID
			isAdmin = claims.IsAdmin
			if claims.Name != "" {
				displayName = claims.Name
			}
		}
	}

	s.mu.Lock()
	prevUser := s.connToUser[c.ConnID]
	c.UserID = userID
	c.IsAdmin = isAdmin
	c.DisplayName = displayName
	if userID != "" {
		s.bindLocked(userID, c.ConnID)
	} else {
		s.unbindConnLocked(c.ConnID)
	}
	if isAdmin {
		s.admins[c.ConnID] = c
	} else {
		delete(s.admins, c.ConnID)
	}
	s.mu.Unlock()

	// 每次 bind/unbind 之后都要通知；换身份时旧用户也要补一次状态。
	if prevUser != "" && prevUser != userID {
		s.notifyUserStatus(prevUser)
	}
	if userID != "" {
		s.notifyUserStatus(userID)
	}
	logger.Infof("[identify] conn=%s user=%s admin=%v", c.ConnID, userID, isAdmin)
	return nil
}
