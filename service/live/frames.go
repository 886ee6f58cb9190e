package live

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// 入站事件（客户端 -> 网关）
const (
	EvIdentify           = "identify"
	EvCheckUserStatus    = "admin:check-user-status"
	EvInitiateCall       = "admin:initiate-private-call-request"
	EvAcceptCall         = "user:accepts-private-call"
	EvPrivateSDPOffer    = "private-sdp-offer"
	EvPrivateSDPAnswer   = "private-sdp-answer"
	EvICECandidate       = "webrtc:ice-candidate"
	EvEndCall            = "webrtc:end-call"
	EvViewerOnLivePage   = "viewer:im-on-live-page"
	EvViewerLeftLivePage = "viewer:left-live-page"
	EvStartStream        = "admin:start-general-stream"
	EvEndStream          = "admin:end-general-stream"
	EvBroadcasterOffer   = "broadcaster:offer-to-viewer"
	EvViewerAnswer       = "viewer:answer-to-broadcaster"
	EvDashboardStats     = "admin:request-dashboard-stats"
	EvRequestChatHistory = "REQUEST_CHAT_HISTORY"
	EvSendChatMessage    = "SEND_CHAT_MESSAGE"
	EvClearChatHistory   = "ADMIN_CLEAR_CHAT_HISTORY"
)

// 出站事件（网关 -> 客户端）。SDP/ICE 转发复用入站事件名，
// 原 targetConnectionId 替换为 senderConnectionId。
const (
	EvConnected        = "connected"
	EvUserStatusUpdate = "user-status-update"
	EvCallInvite       = "private-call-invite"
	EvCallAccepted     = "private-call-accepted"
	EvCallEnded        = "webrtc:call-ended"
	EvStreamInfo       = "stream-info"
	EvNewViewerRequest = "new-viewer-request"
	EvStreamEnded      = "stream-ended"
	EvDashboardReply   = "dashboard-stats"
	EvChatHistory      = "CHAT_HISTORY"
	EvNewChatMessage   = "NEW_CHAT_MESSAGE"
	EvChatRejected     = "CHAT_MESSAGE_REJECTED"
)

// Frame 单连接上多路复用的业务帧。
type Frame struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if frame.Event == "" {
		return nil, fmt.Errorf("frame has no event name")
	}
	return frame, nil
}

func buildFrame(event string, data map[string]any) *Frame {
	return &Frame{Event: event, Data: data}
}

func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// ---- 各事件负载（json tag 与客户端字段一致）----

type IdentifyPayload struct {
	ApplicationUserID string `json:"applicationUserId"`
	IsAdministrator   bool   `json:"isAdministrator"`
	DisplayName       string `json:"displayName"`
	// 可选的平台会话 token；配置了密钥时以 token 声明为准
	Token string `json:"token"`
}

type TargetUserPayload struct {
	TargetUserID string `json:"targetUserId"`
}

type InitiateCallPayload struct {
	TargetUserID string `json:"targetUserId"`
	AdminName    string `json:"adminName"`
}

type AcceptCallPayload struct {
	AdminConnectionID string `json:"adminConnectionId"`
}

// RelayPayload 信令转发只关心目标连接，其余字段原样透传。
type RelayPayload struct {
	TargetConnectionID string `json:"targetConnectionId"`
}

type StartStreamPayload struct {
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle"`
	IsLoggedInOnly bool   `json:"isLoggedInOnly"`
}

type ChatSendPayload struct {
	Message string `json:"message"`
}

// ChatMessage 聊天记录条目，创建后不可变。
type ChatMessage struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	Timestamp   string `json:"timestamp"`
	IsAdmin     bool   `json:"isAdministrator"`
}

// chatMessageID: 毫秒时间戳 + 随机后缀，进程内唯一即可。
func chatMessageID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}
