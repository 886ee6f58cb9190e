package live

import (
	"LiveGateway/logger"
	decode "LiveGateway/tools/decode"
)

// 信令转发：无状态透传 SDP offer/answer、ICE candidate。
// 网关不解读负载内容，只把 targetConnectionId 换成 senderConnectionId，
// 私聊通话和直播协商共用同一条路径。

func (s *Server) handleSignalRelay(_ *LiveContext, f *Frame, c *WsConn) error {
	p, err := decode.DecodeMap[RelayPayload](f.Data)
	if err != nil {
		return err
	}
	if p.TargetConnectionID == "" {
		logger.Debug("signal frame without target, dropped")
		return nil
	}

	out := make(map[string]any, len(f.Data))
	for k, v := range f.Data {
		if k == "targetConnectionId" {
			continue
		}
		out[k] = v
	}
	out["senderConnectionId"] = c.ConnID

	// 目标已下线：静默丢弃，发送方会从在线状态变化得到答案
	s.sendTo(p.TargetConnectionID, buildFrame(f.Event, out))
	return nil
}
