package sim

// A RemotePort is a string that refers to another port.
type RemotePort string

// A Msg is a piece of information that is transferred between components.
type Msg interface {
	Meta() *MsgMeta
}

// MsgMeta contains the meta data that is attached to every message.
type MsgMeta struct {
	ID                 string
	Src, Dst           RemotePort
	SendTime, RecvTime VTimeInCycle
	TrafficBytes       int
}

// Rsp is a special message that is used to indicate the completion of a
// request.
type Rsp interface {
	Msg
	GetRspTo() string
}

// SendError marks a failure send or receive. The receiver is busy and the
// sender should wait for a NotifyAvailable call before sending again.
type SendError struct{}

// NewSendError creates a SendError
func NewSendError() *SendError {
	return new(SendError)
}

// Error returns the error message.
func (e *SendError) Error() string {
	return "receiver busy, retry later"
}
