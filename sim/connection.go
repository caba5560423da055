package sim

// A Connection is responsible for delivering messages to its destination.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port)
	Unplug(port Port)

	// Send delivers the message to the destination port and returns the
	// destination's decision.
	Send(msg Msg) *SendError

	// NotifyAvailable tells the given port that the peer it failed to send
	// to can receive again.
	NotifyAvailable(port RemotePort)
}

// HookPosConnStartSend marks a connection accept to send a message.
var HookPosConnStartSend = &HookPos{Name: "Conn Start Send"}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
