package sim

import (
	"fmt"
	"sync"
)

// HookPosPortMsgSend marks when a message is sent out from the port.
var HookPosPortMsgSend = &HookPos{Name: "Port Msg Send"}

// HookPosPortMsgRecvd marks when an inbound message arrives at a the given port
var HookPosPortMsgRecvd = &HookPos{Name: "Port Msg Recv"}

// HookPosPortMsgRefused marks when the owner of the port refuses an inbound
// message.
var HookPosPortMsgRefused = &HookPos{Name: "Port Msg Refused"}

// HookPosPortRetry marks when the port notifies a refused sender to send
// again.
var HookPosPortRetry = &HookPos{Name: "Port Retry"}

// A Port is owned by a component and is used to plugin connections.
//
// Ports follow a retry protocol. A message delivered to a port is either
// accepted or refused by the owner component immediately. A refused sender
// must hold the message until it is notified with NotifyAvailable, which
// happens when the receiving component calls NotifyRetry on its port.
type Port interface {
	Named
	Hookable

	AsRemote() RemotePort

	SetConnection(conn Connection)
	Component() Component

	// For component
	Send(msg Msg) *SendError
	NotifyRetry()
	HasWaitingSender() bool

	// For connection
	Deliver(msg Msg) *SendError
	NotifyAvailable()
}

// defaultPort implements the port interface.
type defaultPort struct {
	HookableBase

	lock sync.Mutex
	name string
	comp Component
	conn Connection

	waitingSenders []RemotePort
}

// NewPort creates a new port with default behavior.
func NewPort(comp Component, name string) Port {
	NameMustBeValid(name)

	p := new(defaultPort)
	p.comp = comp
	p.name = name

	return p
}

// AsRemote returns the remote port name.
func (p *defaultPort) AsRemote() RemotePort {
	return RemotePort(p.name)
}

// SetConnection sets which connection plugged in to this port.
func (p *defaultPort) SetConnection(conn Connection) {
	if p.conn != nil {
		panic(fmt.Sprintf(
			"connection already set to %s, now connecting to %s",
			p.conn.Name(), conn.Name(),
		))
	}

	p.conn = conn
}

// Component returns the owner component of the port.
func (p *defaultPort) Component() Component {
	return p.comp
}

// Name returns the name of the port.
func (p *defaultPort) Name() string {
	return p.name
}

// Send is used to send a message out from a component. A nil return value
// means the receiver has accepted the message.
func (p *defaultPort) Send(msg Msg) *SendError {
	p.msgMustBeValid(msg)

	if p.conn == nil {
		panic("port " + p.name + " is not connected")
	}

	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgSend,
		Item:   msg,
	})

	return p.conn.Send(msg)
}

// Deliver is used by the connection to hand a message to the owner component.
func (p *defaultPort) Deliver(msg Msg) *SendError {
	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgRecvd,
		Item:   msg,
	})

	if p.comp.Recv(p, msg) {
		return nil
	}

	p.addWaitingSender(msg.Meta().Src)

	p.InvokeHook(HookCtx{
		Domain: p,
		Pos:    HookPosPortMsgRefused,
		Item:   msg,
	})

	return NewSendError()
}

func (p *defaultPort) addWaitingSender(src RemotePort) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for _, s := range p.waitingSenders {
		if s == src {
			return
		}
	}

	p.waitingSenders = append(p.waitingSenders, src)
}

// HasWaitingSender returns true if the port has refused a sender that has not
// been notified yet.
func (p *defaultPort) HasWaitingSender() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.waitingSenders) > 0
}

// NotifyRetry tells all the senders that this port refused that they can send
// again. Senders are notified in the order they were refused.
func (p *defaultPort) NotifyRetry() {
	p.lock.Lock()
	waiting := p.waitingSenders
	p.waitingSenders = nil
	p.lock.Unlock()

	for _, src := range waiting {
		p.InvokeHook(HookCtx{
			Domain: p,
			Pos:    HookPosPortRetry,
			Item:   src,
		})

		p.conn.NotifyAvailable(src)
	}
}

// NotifyAvailable is called by the connection to notify the port that the
// peer can receive messages again.
func (p *defaultPort) NotifyAvailable() {
	if p.comp != nil {
		p.comp.NotifyAvailable(p)
	}
}

func (p *defaultPort) msgMustBeValid(msg Msg) {
	portMustBeMsgSrc(p, msg)
	dstMustNotBeEmpty(msg.Meta().Dst)
	srcDstMustNotBeTheSame(msg)
}

func portMustBeMsgSrc(port Port, msg Msg) {
	if port.Name() != string(msg.Meta().Src) {
		panic("sending port is not msg src")
	}
}

func dstMustNotBeEmpty(port RemotePort) {
	if port == "" {
		panic("dst is not given")
	}
}

func srcDstMustNotBeTheSame(msg Msg) {
	if msg.Meta().Src == msg.Meta().Dst {
		panic("sending back to src")
	}
}
