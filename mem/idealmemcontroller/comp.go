// Package idealmemcontroller provides a fixed-latency memory model with an
// instruction port and a data port that serves one request at a time.
package idealmemcontroller

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

type respondEvent struct {
	*sim.EventBase
}

func newRespondEvent(time sim.VTimeInCycle, handler sim.Handler) *respondEvent {
	return &respondEvent{sim.NewEventBase(time, handler)}
}

// An AccessRecord is the request that the memory controller is serving.
type AccessRecord struct {
	Port      sim.Port
	Req       mem.AccessReq
	Kind      mem.AccessKind
	IssueTime sim.VTimeInCycle
}

// A Comp is an ideal memory controller that can perform read and write.
//
// The controller serves at most one request at a time, from either the
// instruction port or the data port. Requests that arrive while a request is
// being served are refused and the senders are asked to retry once the
// controller becomes free. Every request completes exactly Latency cycles
// after it is accepted.
type Comp struct {
	*sim.ComponentBase

	engine   sim.Engine
	instPort sim.Port
	dataPort sim.Port
	Storage  *mem.Storage
	Latency  sim.VTimeInCycle

	record *AccessRecord
}

// InstPort returns the port that receives instruction fetches.
func (c *Comp) InstPort() sim.Port {
	return c.instPort
}

// DataPort returns the port that receives data accesses.
func (c *Comp) DataPort() sim.Port {
	return c.dataPort
}

// Busy returns true if a request is being served.
func (c *Comp) Busy() bool {
	return c.record != nil
}

// Record returns the request being served, or nil if the controller is idle.
func (c *Comp) Record() *AccessRecord {
	return c.record
}

// Recv accepts a request if the controller is idle.
func (c *Comp) Recv(port sim.Port, msg sim.Msg) bool {
	if c.record != nil {
		return false
	}

	kind, err := mem.KindOf(msg)
	if err != nil {
		panic(fmt.Errorf("%s: %w", c.Name(), err))
	}

	now := c.engine.CurrentTime()
	c.record = &AccessRecord{
		Port:      port,
		Req:       msg.(mem.AccessReq),
		Kind:      kind,
		IssueTime: now,
	}

	tracing.TraceReqReceive(msg, c)

	c.engine.Schedule(newRespondEvent(now+c.Latency, c))

	return true
}

// NotifyAvailable does nothing as responses are never refused.
func (c *Comp) NotifyAvailable(_ sim.Port) {
	// Do nothing
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
	record := c.record
	if record == nil {
		log.Panicf("%s: respond without a request", c.Name())
	}

	var rsp sim.Msg

	switch req := record.Req.(type) {
	case *mem.ReadReq:
		rsp = c.handleReadReq(record.Port, req)
	case *mem.WriteReq:
		rsp = c.handleWriteReq(record.Port, req)
	}

	rsp.Meta().SendTime = c.engine.CurrentTime()

	if err := record.Port.Send(rsp); err != nil {
		log.Panicf("%s: response to %s refused", c.Name(), rsp.Meta().Dst)
	}

	tracing.TraceReqComplete(record.Req, c)

	c.record = nil

	c.dataPort.NotifyRetry()
	c.instPort.NotifyRetry()
}

func (c *Comp) handleReadReq(port sim.Port, req *mem.ReadReq) sim.Msg {
	data, err := c.Storage.Read(req.Address, req.AccessByteSize)
	if err != nil {
		log.Panic(err)
	}

	return mem.DataReadyRspBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		WithData(data).
		Build()
}

func (c *Comp) handleWriteReq(port sim.Port, req *mem.WriteReq) sim.Msg {
	err := c.Storage.Write(req.Address, req.Data)
	if err != nil {
		log.Panic(err)
	}

	return mem.WriteDoneRspBuilder{}.
		WithSrc(port.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID).
		Build()
}

// FunctionalRead reads the storage without spending simulated time.
func (c *Comp) FunctionalRead(addr, size uint64) ([]byte, error) {
	return c.Storage.Read(addr, size)
}

// FunctionalWrite writes the storage without spending simulated time.
func (c *Comp) FunctionalWrite(addr uint64, data []byte) error {
	return c.Storage.Write(addr, data)
}
