// Package cache provides a blocking cache that serves one request at a time
// for a number of requesters.
package cache

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

// State is the processing state of the cache.
type State int

// The states of the cache.
const (
	StateIdle State = iota
	StateCheckingTag
	StateHitWait
	StateMissForward
	StateFillWait
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckingTag:
		return "CheckingTag"
	case StateHitWait:
		return "HitWait"
	case StateMissForward:
		return "MissForward"
	case StateFillWait:
		return "FillWait"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// A PendingRequest is the request that the cache is serving.
type PendingRequest struct {
	PortIndex int
	Req       mem.AccessReq
	Kind      mem.AccessKind
	IssueTime sim.VTimeInCycle
	State     State

	// FillReq is the request sent to the memory side on a miss.
	FillReq *mem.ReadReq
}

type respondEvent struct {
	*sim.EventBase
}

func newRespondEvent(time sim.VTimeInCycle, handler sim.Handler) *respondEvent {
	return &respondEvent{sim.NewEventBase(time, handler)}
}

// Comp is a cache that sits between a number of requesters and a memory. It
// accepts one request at a time. Hits are served after Latency cycles. Misses
// are forwarded to the memory side immediately; once the block is filled, the
// response is sent after another Latency cycles. Writes allocate the block and
// only update the cached copy.
type Comp struct {
	*sim.ComponentBase

	engine    sim.Engine
	Latency   sim.VTimeInCycle
	topPorts  []sim.Port
	memPort   sim.Port
	lowModule sim.RemotePort
	backend   mem.FunctionalAccessor
	blocks    *BlockStore

	pending *PendingRequest
}

// TopPort returns the requester-side port with the given index.
func (c *Comp) TopPort(i int) sim.Port {
	return c.topPorts[i]
}

// NumTopPorts returns the number of requester-side ports.
func (c *Comp) NumTopPorts() int {
	return len(c.topPorts)
}

// MemSidePort returns the port that connects to the memory.
func (c *Comp) MemSidePort() sim.Port {
	return c.memPort
}

// SetLowModule sets the port that the misses are sent to.
func (c *Comp) SetLowModule(port sim.RemotePort) {
	c.lowModule = port
}

// SetFunctionalBackend sets where functional accesses that miss in the cache
// go.
func (c *Comp) SetFunctionalBackend(backend mem.FunctionalAccessor) {
	c.backend = backend
}

// Blocks returns the block store of the cache.
func (c *Comp) Blocks() *BlockStore {
	return c.blocks
}

// Pending returns the request being served, or nil if the cache is idle.
func (c *Comp) Pending() *PendingRequest {
	return c.pending
}

// State returns the processing state of the cache.
func (c *Comp) State() State {
	if c.pending == nil {
		return StateIdle
	}

	return c.pending.State
}

// IsResident returns true if the block that contains the address is valid in
// the cache.
func (c *Comp) IsResident(addr uint64) bool {
	_, found := c.blocks.Lookup(addr)
	return found
}

// Recv is called when a message arrives at one of the ports of the cache.
func (c *Comp) Recv(port sim.Port, msg sim.Msg) bool {
	if port == c.memPort {
		c.handleMemRsp(msg)
		return true
	}

	return c.handleReq(port, msg)
}

func (c *Comp) topPortIndex(port sim.Port) int {
	for i, p := range c.topPorts {
		if p == port {
			return i
		}
	}

	log.Panicf("%s: port %s does not belong to the cache", c.Name(), port.Name())

	return -1
}

func (c *Comp) handleReq(port sim.Port, msg sim.Msg) bool {
	if c.pending != nil {
		return false
	}

	kind, err := mem.KindOf(msg)
	if err != nil {
		panic(fmt.Errorf("%s: %w", c.Name(), err))
	}

	req := msg.(mem.AccessReq)

	err = mem.AccessMustFitInBlock(
		req.GetAddress(), req.GetByteSize(), c.blocks.BlockSize())
	if err != nil {
		panic(fmt.Errorf("%s: %w", c.Name(), err))
	}

	c.pending = &PendingRequest{
		PortIndex: c.topPortIndex(port),
		Req:       req,
		Kind:      kind,
		IssueTime: c.engine.CurrentTime(),
		State:     StateCheckingTag,
	}

	tracing.TraceReqReceive(msg, c)

	if c.IsResident(req.GetAddress()) {
		c.hit()
	} else {
		c.miss()
	}

	return true
}

func (c *Comp) hit() {
	c.addTaskStep(c.pending.Kind.String() + "-hit")
	c.waitAndRespond()
}

func (c *Comp) waitAndRespond() {
	c.pending.State = StateHitWait
	c.engine.Schedule(newRespondEvent(c.engine.CurrentTime()+c.Latency, c))
}

func (c *Comp) miss() {
	c.addTaskStep(c.pending.Kind.String() + "-miss")

	blockSize := c.blocks.BlockSize()
	c.pending.State = StateMissForward
	c.pending.FillReq = mem.ReadReqBuilder{}.
		WithSrc(c.memPort.AsRemote()).
		WithDst(c.lowModule).
		WithAddress(mem.BlockAlign(c.pending.Req.GetAddress(), blockSize)).
		WithByteSize(blockSize).
		Build()

	tracing.TraceReqInitiate(c.pending.FillReq, c,
		tracing.MsgIDAtReceiver(c.pending.Req, c))

	c.sendFillReq()
}

func (c *Comp) sendFillReq() {
	c.pending.FillReq.SendTime = c.engine.CurrentTime()

	if err := c.memPort.Send(c.pending.FillReq); err != nil {
		return
	}

	c.pending.State = StateFillWait
}

func (c *Comp) handleMemRsp(msg sim.Msg) {
	rsp, ok := msg.(*mem.DataReadyRsp)
	if !ok {
		panic(fmt.Errorf("%s: %w: %T on the memory side",
			c.Name(), mem.ErrUnsupportedAccessKind, msg))
	}

	if c.pending == nil || c.pending.State != StateFillWait ||
		rsp.RespondTo != c.pending.FillReq.ID {
		log.Panicf("%s: unexpected response %s", c.Name(), rsp.ID)
	}

	evicted := c.blocks.Fill(c.pending.FillReq.Address, rsp.Data)
	if evicted.IsValid {
		c.addTaskStep("evict")
	}

	tracing.TraceReqFinalize(c.pending.FillReq, c)

	c.waitAndRespond()
}

// NotifyAvailable resends the fill request if the memory side refused it.
func (c *Comp) NotifyAvailable(port sim.Port) {
	if port != c.memPort {
		return
	}

	if c.pending == nil || c.pending.State != StateMissForward {
		return
	}

	c.sendFillReq()
}

// Handle defines how the Comp handles event
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *respondEvent:
		c.respond()
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) respond() {
	pending := c.pending
	if pending == nil || pending.State != StateHitWait {
		log.Panicf("%s: respond while not waiting to respond", c.Name())
	}

	addr := pending.Req.GetAddress()
	block, found := c.blocks.Lookup(addr)
	if !found {
		log.Panicf("%s: block 0x%x is not resident at response time",
			c.Name(), addr)
	}

	offset := addr - block.Tag
	port := c.topPorts[pending.PortIndex]

	var rsp sim.Msg

	switch req := pending.Req.(type) {
	case *mem.ReadReq:
		rsp = mem.DataReadyRspBuilder{}.
			WithSrc(port.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(block.Read(offset, req.AccessByteSize)).
			Build()
	case *mem.WriteReq:
		block.Write(offset, req.Data)
		rsp = mem.WriteDoneRspBuilder{}.
			WithSrc(port.AsRemote()).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	}

	rsp.Meta().SendTime = c.engine.CurrentTime()

	if err := port.Send(rsp); err != nil {
		log.Panicf("%s: response to %s refused", c.Name(), rsp.Meta().Dst)
	}

	tracing.TraceReqComplete(pending.Req, c)

	c.pending = nil

	for _, p := range c.topPorts {
		p.NotifyRetry()
	}
}

func (c *Comp) addTaskStep(what string) {
	tracing.AddTaskStep(tracing.MsgIDAtReceiver(c.pending.Req, c), c, what)
}

// FunctionalRead reads data without spending simulated time. Resident blocks
// are served by the cache and other addresses by the functional backend.
func (c *Comp) FunctionalRead(addr, size uint64) ([]byte, error) {
	err := mem.AccessMustFitInBlock(addr, size, c.blocks.BlockSize())
	if err != nil {
		return nil, err
	}

	if block, found := c.blocks.Lookup(addr); found {
		return block.Read(addr-block.Tag, size), nil
	}

	if c.backend == nil {
		return nil, fmt.Errorf("%s: no functional backend for 0x%x",
			c.Name(), addr)
	}

	return c.backend.FunctionalRead(addr, size)
}

// FunctionalWrite writes data without spending simulated time. Resident
// blocks are updated in the cache only, the same way as timing writes.
func (c *Comp) FunctionalWrite(addr uint64, data []byte) error {
	err := mem.AccessMustFitInBlock(
		addr, uint64(len(data)), c.blocks.BlockSize())
	if err != nil {
		return err
	}

	if block, found := c.blocks.Lookup(addr); found {
		block.Write(addr-block.Tag, data)
		return nil
	}

	if c.backend == nil {
		return fmt.Errorf("%s: no functional backend for 0x%x",
			c.Name(), addr)
	}

	return c.backend.FunctionalWrite(addr, data)
}
