package live

import (
	"sync"
	"time"

	"LiveGateway/logger"
	"LiveGateway/service/settings"
	"LiveGateway/tools/safe"
)

// ===== 配置 =====

type Conf struct {
	GatewayID       string
	ChatHistorySize int              // 聊天环形缓冲上限（默认 100）
	SendQueueSize   int              // 每连接出站队列（默认 256）
	JWTSecret       []byte           // 为空则 identify 自报身份生效
	Clock           func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *Conf) norm() {
	if c.GatewayID == "" {
		c.GatewayID = "live_gw-1"
	}
	if c.ChatHistorySize <= 0 {
		c.ChatHistorySize = 100
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ===== 服务器 =====

// Server owns every piece of in-process live state: the connection registry,
// the administrator and live-page viewer sets, the chat history buffer and the
// single broadcast session. All of it resets on process restart.
type Server struct {
	conf     Conf
	settings settings.Store
	disp     *Dispatcher

	mu         sync.RWMutex
	byConn     map[string]*WsConn // conn_id -> conn
	userToConn map[string]string  // user_id -> conn_id（最后一次 identify 生效）
	connToUser map[string]string  // conn_id -> user_id
	admins     map[string]*WsConn // 管理员连接集合
	viewers    map[string]*WsConn // 直播页连接集合
	stream     *StreamSession     // nil == Idle
	callPeers  map[string]string  // conn_id -> 对端 conn_id（接通后的私聊通话）
	history    []*ChatMessage     // 最近 N 条聊天
}

func NewServer(conf Conf, st settings.Store) *Server {
	safe.MustNotNil(st, "settings store")
	conf.norm()
	s := &Server{
		conf:       conf,
		settings:   st,
		disp:       NewDispatcher(),
		byConn:     make(map[string]*WsConn),
		userToConn: make(map[string]string),
		connToUser: make(map[string]string),
		admins:     make(map[string]*WsConn),
		viewers:    make(map[string]*WsConn),
		callPeers:  make(map[string]string),
	}
	s.registerHandlers()
	return s
}

func (s *Server) GatewayID() string { return s.conf.GatewayID }

func (s *Server) Disp() *Dispatcher { return s.disp }

func (s *Server) registerHandlers() {
	for _, h := range []Handler{
		on(EvIdentify, s.handleIdentify),
		on(EvCheckUserStatus, s.handleCheckUserStatus),
		on(EvInitiateCall, s.handleInitiateCall),
		on(EvAcceptCall, s.handleAcceptCall),
		on(EvPrivateSDPOffer, s.handleSignalRelay),
		on(EvPrivateSDPAnswer, s.handleSignalRelay),
		on(EvICECandidate, s.handleSignalRelay),
		on(EvEndCall, s.handleEndCall),
		on(EvViewerOnLivePage, s.handleViewerJoin),
		on(EvViewerLeftLivePage, s.handleViewerLeave),
		on(EvStartStream, s.handleStartStream),
		on(EvEndStream, s.handleEndStream),
		on(EvBroadcasterOffer, s.handleSignalRelay),
		on(EvViewerAnswer, s.handleSignalRelay),
		on(EvDashboardStats, s.handleDashboardStats),
		on(EvRequestChatHistory, s.handleRequestHistory),
		on(EvSendChatMessage, s.handleSendChat),
		on(EvClearChatHistory, s.handleClearChat),
	} {
		s.disp.Register(h)
	}
}

// dispatch 处理一帧；handler panic 只丢弃该帧，不影响进程内其他连接。
func (s *Server) dispatch(f *Frame, c *WsConn) {
	h := s.disp.GetHandler(f.Event)
	if h == nil {
		return
	}
	err := safe.Call(func() error {
		return h.Handle(&LiveContext{S: s}, f, c)
	})
	if err != nil {
		logger.Warnf("[dispatch] event=%s conn=%s err=%v", f.Event, c.ConnID, err)
	}
}

// ===== 连接登记 / 投递 =====

func (s *Server) addConn(c *WsConn) {
	s.mu.Lock()
	s.byConn[c.ConnID] = c
	s.mu.Unlock()
}

func (s *Server) getConn(connID string) *WsConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byConn[connID]
}

// sendTo 按连接 ID 投递；目标已下线则静默丢弃。
func (s *Server) sendTo(connID string, f *Frame) {
	c := s.getConn(connID)
	if c == nil {
		return
	}
	s.sendToConn(c, f)
}

func (s *Server) sendToConn(c *WsConn, f *Frame) {
	data, err := f.Encode()
	if err != nil {
		logger.Errorf("[send] encode event=%s err=%v", f.Event, err)
		return
	}
	if !c.enqueue(data) {
		logger.Warnf("[send] send ch full, drop event=%s conn=%s", f.Event, c.ConnID)
	}
}

func (s *Server) broadcastAll(f *Frame) {
	data, err := f.Encode()
	if err != nil {
		logger.Errorf("[broadcast] encode event=%s err=%v", f.Event, err)
		return
	}
	s.mu.RLock()
	conns := make([]*WsConn, 0, len(s.byConn))
	for _, c := range s.byConn {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if !c.enqueue(data) {
			logger.Warnf("[broadcast] send ch full, drop event=%s conn=%s", f.Event, c.ConnID)
		}
	}
}

// isAdminConn 管理员判定走服务端集合，不信连接自带标记以外的来源。
func (s *Server) isAdminConn(c *WsConn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[c.ConnID]
	return ok
}

// ===== 断开收尾 =====

// disconnect runs every per-connection cleanup from one place, so a client
// that vanishes mid-negotiation always leaves its peers in a consistent state.
func (s *Server) disconnect(c *WsConn) {
	s.mu.Lock()
	delete(s.byConn, c.ConnID)

	var user string
	if u, ok := s.connToUser[c.ConnID]; ok {
		user = u
		delete(s.connToUser, c.ConnID)
		if s.userToConn[u] == c.ConnID {
			delete(s.userToConn, u)
		}
	}
	delete(s.admins, c.ConnID)
	delete(s.viewers, c.ConnID)

	ownedStream := s.stream != nil && s.stream.OwnerConnID == c.ConnID
	if ownedStream {
		s.stream = nil
	}

	peer := s.callPeers[c.ConnID]
	if peer != "" {
		delete(s.callPeers, c.ConnID)
		delete(s.callPeers, peer)
	}
	s.mu.Unlock()

	if ownedStream {
		s.broadcastAll(buildFrame(EvStreamEnded, nil))
	}
	if peer != "" {
		s.sendTo(peer, buildFrame(EvCallEnded, map[string]any{
			"senderConnectionId": c.ConnID,
		}))
	}
	if user != "" {
		s.notifyUserStatus(user)
	}
	logger.Infof("[WS] closed conn=%s user=%s", c.ConnID, user)
}
