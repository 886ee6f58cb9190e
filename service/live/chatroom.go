package live

import (
	"context"
	"strings"
	"time"

	"LiveGateway/logger"
	"LiveGateway/service/settings"
	decode "LiveGateway/tools/decode"
)

// 拒绝原因（原样回给发送方展示）
const (
	ReasonChatDisabled = "chat disabled"
	ReasonMustLogIn    = "must log in"
	ReasonForbidden    = "forbidden content"
)

const settingsTimeout = 3 * time.Second

// getSettingValue 读设置；键不存在返回零值，I/O 错误上抛（调用方 fail-closed）。
func (s *Server) getSettingValue(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), settingsTimeout)
	defer cancel()
	rec, err := s.settings.Get(ctx, key)
	if err != nil {
		if settings.ErrNotFound.Is(err) {
			return "", nil
		}
		return "", err
	}
	return rec.Value, nil
}

// handleSendChat 审核流水线：开关 -> 登录模式 -> 违禁词，首个不过即止。
// 设置每次现查，不做缓存；取不到设置一律按关闭处理。
func (s *Server) handleSendChat(_ *LiveContext, f *Frame, c *WsConn) error {
	p, err := decode.DecodeMap[ChatSendPayload](f.Data)
	if err != nil {
		return err
	}

	if reason := s.moderate(c, p.Message); reason != "" {
		s.sendToConn(c, buildFrame(EvChatRejected, map[string]any{"reason": reason}))
		return nil
	}

	msg := s.appendChat(c, p.Message)
	s.broadcastAll(buildFrame(EvNewChatMessage, map[string]any{"message": msg}))
	return nil
}

// moderate 返回空串表示放行。
func (s *Server) moderate(c *WsConn, text string) string {
	enabled, err := s.getSettingValue(settings.KeyChatEnabled)
	if err != nil {
		logger.Warnf("[chat] settings unavailable, rejecting: %v", err)
		return ReasonChatDisabled
	}
	if enabled != "true" {
		return ReasonChatDisabled
	}

	mode, err := s.getSettingValue(settings.KeyChatMode)
	if err != nil {
		logger.Warnf("[chat] settings unavailable, rejecting: %v", err)
		return ReasonChatDisabled
	}
	if mode == "logged_in" && c.UserID == "" {
		return ReasonMustLogIn
	}

	keywords, err := s.getSettingValue(settings.KeyForbiddenKeywords)
	if err != nil {
		logger.Warnf("[chat] settings unavailable, rejecting: %v", err)
		return ReasonChatDisabled
	}
	// 子串匹配而非整词：关键词 "ass" 也会挡下 "class"，与线上行为一致。
	lower := strings.ToLower(text)
	for _, kw := range strings.Split(keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			return ReasonForbidden
		}
	}
	return ""
}

func (s *Server) appendChat(c *WsConn, text string) *ChatMessage {
	now := s.conf.Clock()
	senderID := c.UserID
	if senderID == "" {
		senderID = c.ConnID
	}
	displayName := c.DisplayName
	if displayName == "" {
		displayName = guestName(c.ConnID)
	}
	msg := &ChatMessage{
		ID:          chatMessageID(now),
		SenderID:    senderID,
		DisplayName: displayName,
		Text:        text,
		Timestamp:   now.UTC().Format(time.RFC3339),
		IsAdmin:     c.IsAdmin,
	}

	s.mu.Lock()
	s.history = append(s.history, msg)
	if n := len(s.history) - s.conf.ChatHistorySize; n > 0 {
		s.history = append(s.history[:0:0], s.history[n:]...)
	}
	s.mu.Unlock()
	return msg
}

// guestName 匿名发送者的确定性短名，从连接 ID 派生。
func guestName(connID string) string {
	if len(connID) > 6 {
		connID = connID[len(connID)-6:]
	}
	return "guest-" + connID
}

// handleRequestHistory 把当前缓冲（旧在前）回给请求连接，供后进场补上下文。
func (s *Server) handleRequestHistory(_ *LiveContext, _ *Frame, c *WsConn) error {
	s.sendToConn(c, buildFrame(EvChatHistory, map[string]any{"messages": s.snapshotChat()}))
	return nil
}

func (s *Server) snapshotChat() []*ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// handleClearChat 管理员清空缓冲并重播空历史，所有客户端同步清屏。
// 非管理员调用是 no-op，不回错误。
func (s *Server) handleClearChat(_ *LiveContext, _ *Frame, c *WsConn) error {
	if !s.isAdminConn(c) {
		logger.Debug("clear chat ignored: caller is not an administrator")
		return nil
	}
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	s.broadcastAll(buildFrame(EvChatHistory, map[string]any{"messages": []*ChatMessage{}}))
	return nil
}
