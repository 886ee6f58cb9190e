package live

import (
	"github.com/golang/glog"
)

type Handler interface {
	Event() string
	Handle(ctx *LiveContext, f *Frame, conn *WsConn) error
}

type LiveContext struct {
	S *Server
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) GetHandler(event string) Handler {
	h, ok := d.handlers[event]
	if !ok {
		glog.Infof("no handler for event=%s", event)
		return nil
	}
	return h
}

// funcHandler 将 Server 方法适配成 Handler。
type funcHandler struct {
	event string
	fn    func(ctx *LiveContext, f *Frame, conn *WsConn) error
}

func on(event string, fn func(ctx *LiveContext, f *Frame, conn *WsConn) error) Handler {
	return &funcHandler{event: event, fn: fn}
}

func (h *funcHandler) Event() string { return h.event }

func (h *funcHandler) Handle(ctx *LiveContext, f *Frame, conn *WsConn) error {
	return h.fn(ctx, f, conn)
}
