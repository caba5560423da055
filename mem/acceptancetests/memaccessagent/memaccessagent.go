// Package memaccessagent provides a requester that drives caches and memory
// controllers with scripted or random read and write requests.
package memaccessagent

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"math/rand"
	"reflect"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

// A Completion records the timing of an access that has been served.
type Completion struct {
	Access       Access
	IssueTime    sim.VTimeInCycle
	AcceptTime   sim.VTimeInCycle
	CompleteTime sim.VTimeInCycle
	Data         []byte
}

type inflight struct {
	access    Access
	req       mem.AccessReq
	issueTime sim.VTimeInCycle
	accepted  sim.VTimeInCycle
}

// A MemAccessAgent is a Component that can help testing the cache and the
// memory controllers by generating read and write requests. It keeps at most
// one request outstanding. A refused request is held until the receiver
// reports that it is available, and is then sent again in the same cycle.
type MemAccessAgent struct {
	*sim.TickingComponent

	LowModule   sim.RemotePort
	AddressBase uint64
	MaxAddress  uint64
	CheckValues bool
	Logger      *log.Logger

	WriteLeft     int
	ReadLeft      int
	KnownMemValue map[uint64]uint32
	Completions   []Completion
	Mismatches    []string

	memPort      sim.Port
	script       sim.Buffer
	rand         *rand.Rand
	writtenAddrs []uint64

	current *inflight
	blocked bool
}

// MemPort returns the port that the agent sends requests through.
func (a *MemAccessAgent) MemPort() sim.Port {
	return a.memPort
}

// Enqueue adds scripted accesses. Scripted accesses are issued before any
// random access.
func (a *MemAccessAgent) Enqueue(accesses ...Access) {
	for _, access := range accesses {
		a.script.Push(access)
	}
}

// NumScripted returns the number of scripted accesses not issued yet.
func (a *MemAccessAgent) NumScripted() int {
	return a.script.Size()
}

// Done returns true if the agent has nothing left to issue and nothing
// outstanding.
func (a *MemAccessAgent) Done() bool {
	return a.current == nil && a.script.Size() == 0 &&
		a.ReadLeft == 0 && a.WriteLeft == 0
}

// Outstanding returns true if the agent is waiting for a response or for the
// receiver to become available.
func (a *MemAccessAgent) Outstanding() bool {
	return a.current != nil
}

// Tick issues a new request if nothing is outstanding.
func (a *MemAccessAgent) Tick() bool {
	if a.current != nil {
		return false
	}

	access, ok := a.nextAccess()
	if !ok {
		return false
	}

	a.current = &inflight{
		access:    access,
		req:       a.buildReq(access),
		issueTime: a.CurrentTime(),
	}

	tracing.TraceReqInitiate(a.current.req, a, "")

	a.send()

	return true
}

func (a *MemAccessAgent) nextAccess() (Access, bool) {
	if a.script.Size() > 0 {
		return a.script.Pop().(Access), true
	}

	if a.ReadLeft == 0 && a.WriteLeft == 0 {
		return Access{}, false
	}

	if a.shouldRead() {
		return a.randomRead(), true
	}

	if a.WriteLeft > 0 {
		return a.randomWrite(), true
	}

	// Random reads only target written addresses. With nothing written and no
	// writes left, the remaining reads cannot be issued.
	a.ReadLeft = 0

	return Access{}, false
}

func (a *MemAccessAgent) shouldRead() bool {
	if len(a.writtenAddrs) == 0 || a.ReadLeft <= 0 {
		return false
	}

	if a.WriteLeft == 0 {
		return true
	}

	return a.rand.Float64() > 0.5
}

func (a *MemAccessAgent) randomAddress() uint64 {
	return a.AddressBase + a.rand.Uint64()%(a.MaxAddress/4)*4
}

func (a *MemAccessAgent) randomRead() Access {
	a.ReadLeft--

	addr := a.writtenAddrs[a.rand.Intn(len(a.writtenAddrs))]

	return Access{
		Kind:    mem.AccessKindRead,
		Address: addr,
		Size:    4,
		Data:    uint32ToBytes(a.KnownMemValue[addr]),
	}
}

func (a *MemAccessAgent) randomWrite() Access {
	a.WriteLeft--

	return Access{
		Kind:    mem.AccessKindWrite,
		Address: a.randomAddress(),
		Size:    4,
		Data:    uint32ToBytes(a.rand.Uint32()),
	}
}

func uint32ToBytes(data uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, data)

	return buf
}

func (a *MemAccessAgent) buildReq(access Access) mem.AccessReq {
	if access.Kind == mem.AccessKindWrite {
		return mem.WriteReqBuilder{}.
			WithSrc(a.memPort.AsRemote()).
			WithDst(a.LowModule).
			WithAddress(access.Address).
			WithData(access.Data).
			Build()
	}

	return mem.ReadReqBuilder{}.
		WithSrc(a.memPort.AsRemote()).
		WithDst(a.LowModule).
		WithAddress(access.Address).
		WithByteSize(access.Size).
		Build()
}

func (a *MemAccessAgent) send() {
	a.current.req.Meta().SendTime = a.CurrentTime()

	if err := a.memPort.Send(a.current.req); err != nil {
		a.blocked = true
		return
	}

	a.blocked = false
	a.current.accepted = a.CurrentTime()

	if a.current.access.Kind == mem.AccessKindWrite {
		a.recordWrite(a.current.access)
	}

	a.logf("%d, %s, issue, %s", a.CurrentTime(), a.Name(), a.current.access)
}

func (a *MemAccessAgent) recordWrite(access Access) {
	if _, written := a.KnownMemValue[access.Address]; !written {
		a.writtenAddrs = append(a.writtenAddrs, access.Address)
	}

	a.KnownMemValue[access.Address] =
		binary.LittleEndian.Uint32(padTo4(access.Data))
}

func padTo4(data []byte) []byte {
	if len(data) >= 4 {
		return data
	}

	padded := make([]byte, 4)
	copy(padded, data)

	return padded
}

// NotifyAvailable resends the refused request in the current cycle.
func (a *MemAccessAgent) NotifyAvailable(_ sim.Port) {
	if a.current == nil || !a.blocked {
		return
	}

	a.send()
}

// Recv receives the responses.
func (a *MemAccessAgent) Recv(_ sim.Port, msg sim.Msg) bool {
	rsp, ok := msg.(mem.AccessRsp)
	if !ok {
		log.Panicf("cannot process message of type %s", reflect.TypeOf(msg))
	}

	if a.current == nil || a.blocked || rsp.GetRspTo() != a.current.req.Meta().ID {
		log.Panicf("%s: unexpected response to %s", a.Name(), rsp.GetRspTo())
	}

	completion := Completion{
		Access:       a.current.access,
		IssueTime:    a.current.issueTime,
		AcceptTime:   a.current.accepted,
		CompleteTime: a.CurrentTime(),
	}

	if dataRsp, ok := msg.(*mem.DataReadyRsp); ok {
		completion.Data = dataRsp.Data
		a.checkReadResult(completion)
	}

	a.Completions = append(a.Completions, completion)
	a.logf("%d, %s, complete, %s, %x",
		a.CurrentTime(), a.Name(), completion.Access, completion.Data)

	tracing.TraceReqFinalize(a.current.req, a)

	a.current = nil
	a.TickNow()

	return true
}

func (a *MemAccessAgent) checkReadResult(c Completion) {
	if !a.CheckValues || c.Access.Data == nil {
		return
	}

	if !bytes.Equal(c.Access.Data, c.Data) {
		a.Mismatches = append(a.Mismatches, fmt.Sprintf(
			"%s at %d: expected %x, got %x",
			c.Access, c.CompleteTime, c.Access.Data, c.Data))
	}
}

func (a *MemAccessAgent) logf(format string, args ...any) {
	if a.Logger == nil {
		return
	}

	a.Logger.Printf(format, args...)
}
