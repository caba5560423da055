package sim

import (
	"fmt"
	"sync"
)

// DirectConnection connects ports without latency. A message is delivered to
// the destination within the Send call, so the sender immediately learns
// whether the message is accepted.
type DirectConnection struct {
	HookableBase

	lock       sync.Mutex
	name       string
	timeTeller TimeTeller
	ports      map[RemotePort]Port
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(name string, timeTeller TimeTeller) *DirectConnection {
	NameMustBeValid(name)

	c := new(DirectConnection)
	c.name = name
	c.timeTeller = timeTeller
	c.ports = make(map[RemotePort]Port)

	return c
}

// Name returns the name of the connection.
func (c *DirectConnection) Name() string {
	return c.name
}

// PlugIn marks the port connects to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, found := c.ports[port.AsRemote()]; found {
		panic(fmt.Sprintf("port %s already plugged in to %s",
			port.Name(), c.name))
	}

	c.ports[port.AsRemote()] = port
	port.SetConnection(c)
}

// Unplug marks the port no longer connects to this DirectConnection.
func (c *DirectConnection) Unplug(_ Port) {
	panic("not implemented")
}

// Send delivers the message to its destination.
func (c *DirectConnection) Send(msg Msg) *SendError {
	c.msgMustBeValid(msg)

	c.InvokeHook(HookCtx{
		Domain: c,
		Pos:    HookPosConnStartSend,
		Item:   msg,
	})

	dst := c.getPort(msg.Meta().Dst)
	msg.Meta().RecvTime = c.timeTeller.CurrentTime()

	err := dst.Deliver(msg)
	if err != nil {
		return err
	}

	c.InvokeHook(HookCtx{
		Domain: c,
		Pos:    HookPosConnDeliver,
		Item:   msg,
	})

	return nil
}

// NotifyAvailable tells the port that its peer can receive again.
func (c *DirectConnection) NotifyAvailable(port RemotePort) {
	c.getPort(port).NotifyAvailable()
}

func (c *DirectConnection) getPort(port RemotePort) Port {
	c.lock.Lock()
	defer c.lock.Unlock()

	p, found := c.ports[port]
	if !found {
		panic(fmt.Sprintf("port %s is not connected to %s", port, c.name))
	}

	return p
}

func (c *DirectConnection) msgMustBeValid(msg Msg) {
	_ = c.getPort(msg.Meta().Src)
	_ = c.getPort(msg.Meta().Dst)

	if msg.Meta().Src == msg.Meta().Dst {
		panic("sending back to src")
	}
}
