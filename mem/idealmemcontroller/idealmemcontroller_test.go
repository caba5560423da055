package idealmemcontroller

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
)

type unknownMsg struct {
	sim.MsgMeta
}

func (m *unknownMsg) Meta() *sim.MsgMeta {
	return &m.MsgMeta
}

var _ = Describe("Ideal Memory Controller", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *MockEngine
		instPort *MockPort
		dataPort *MockPort
		memCtrl  *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)
		engine.EXPECT().CurrentTime().Return(sim.VTimeInCycle(5)).AnyTimes()

		instPort = NewMockPort(mockCtrl)
		instPort.EXPECT().AsRemote().Return(sim.RemotePort("Mem.InstPort")).AnyTimes()
		dataPort = NewMockPort(mockCtrl)
		dataPort.EXPECT().AsRemote().Return(sim.RemotePort("Mem.DataPort")).AnyTimes()

		memCtrl = MakeBuilder().
			WithEngine(engine).
			WithLatency(10).
			WithNewStorage(1 * mem.MB).
			Build("Mem")
		memCtrl.instPort = instPort
		memCtrl.dataPort = dataPort
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should accept a request and schedule the response", func() {
		req := mem.ReadReqBuilder{}.
			WithSrc("Cache.MemSide").
			WithDst("Mem.DataPort").
			WithAddress(0x40).
			WithByteSize(4).
			Build()

		engine.EXPECT().Schedule(gomock.Any()).Do(func(e sim.Event) {
			Expect(e).To(BeAssignableToTypeOf(&respondEvent{}))
			Expect(e.Time()).To(Equal(sim.VTimeInCycle(15)))
		})

		Expect(memCtrl.Recv(dataPort, req)).To(BeTrue())
		Expect(memCtrl.Busy()).To(BeTrue())
		Expect(memCtrl.Record().Kind).To(Equal(mem.AccessKindRead))
		Expect(memCtrl.Record().IssueTime).To(Equal(sim.VTimeInCycle(5)))
		Expect(memCtrl.Record().Port).To(BeIdenticalTo(dataPort))
	})

	It("should refuse requests while busy without changing state", func() {
		req1 := mem.ReadReqBuilder{}.WithSrc("Cache.MemSide").Build()
		req2 := mem.ReadReqBuilder{}.WithSrc("Agent.Mem").Build()
		engine.EXPECT().Schedule(gomock.Any())

		Expect(memCtrl.Recv(dataPort, req1)).To(BeTrue())
		record := *memCtrl.Record()

		Expect(memCtrl.Recv(instPort, req2)).To(BeFalse())
		Expect(*memCtrl.Record()).To(Equal(record))
	})

	It("should respond to reads with the stored data", func() {
		Expect(memCtrl.Storage.Write(0x40, []byte{1, 2, 3, 4})).To(Succeed())

		req := mem.ReadReqBuilder{}.
			WithSrc("Cache.MemSide").
			WithDst("Mem.DataPort").
			WithAddress(0x40).
			WithByteSize(4).
			Build()
		engine.EXPECT().Schedule(gomock.Any())
		memCtrl.Recv(dataPort, req)

		gomock.InOrder(
			dataPort.EXPECT().Send(gomock.Any()).
				DoAndReturn(func(msg sim.Msg) *sim.SendError {
					rsp := msg.(*mem.DataReadyRsp)
					Expect(rsp.RespondTo).To(Equal(req.ID))
					Expect(rsp.Data).To(Equal([]byte{1, 2, 3, 4}))
					Expect(rsp.Src).To(Equal(sim.RemotePort("Mem.DataPort")))
					Expect(rsp.Dst).To(Equal(sim.RemotePort("Cache.MemSide")))
					Expect(rsp.SendTime).To(Equal(sim.VTimeInCycle(5)))

					return nil
				}),
			dataPort.EXPECT().NotifyRetry(),
			instPort.EXPECT().NotifyRetry(),
		)

		Expect(memCtrl.Handle(newRespondEvent(15, memCtrl))).To(Succeed())
		Expect(memCtrl.Busy()).To(BeFalse())
	})

	It("should write data and acknowledge", func() {
		req := mem.WriteReqBuilder{}.
			WithSrc("Agent.Mem").
			WithDst("Mem.InstPort").
			WithAddress(0x100).
			WithData([]byte{9, 8}).
			Build()
		engine.EXPECT().Schedule(gomock.Any())
		memCtrl.Recv(instPort, req)

		instPort.EXPECT().Send(gomock.Any()).
			DoAndReturn(func(msg sim.Msg) *sim.SendError {
				rsp := msg.(*mem.WriteDoneRsp)
				Expect(rsp.RespondTo).To(Equal(req.ID))

				return nil
			})
		dataPort.EXPECT().NotifyRetry()
		instPort.EXPECT().NotifyRetry()

		Expect(memCtrl.Handle(newRespondEvent(15, memCtrl))).To(Succeed())

		data, err := memCtrl.FunctionalRead(0x100, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{9, 8}))
	})

	It("should panic if the response is refused", func() {
		req := mem.ReadReqBuilder{}.WithSrc("Agent.Mem").WithByteSize(4).Build()
		engine.EXPECT().Schedule(gomock.Any())
		memCtrl.Recv(dataPort, req)

		dataPort.EXPECT().Send(gomock.Any()).Return(sim.NewSendError())

		Expect(func() {
			_ = memCtrl.Handle(newRespondEvent(15, memCtrl))
		}).To(Panic())
	})

	It("should panic on unsupported messages", func() {
		defer func() {
			r := recover()
			Expect(r).NotTo(BeNil())
			err, ok := r.(error)
			Expect(ok).To(BeTrue())
			Expect(errors.Is(err, mem.ErrUnsupportedAccessKind)).To(BeTrue())
		}()

		memCtrl.Recv(dataPort, &unknownMsg{})
	})

	It("should serve functional accesses", func() {
		Expect(memCtrl.FunctionalWrite(0x10, []byte{7})).To(Succeed())

		data, err := memCtrl.FunctionalRead(0x10, 1)

		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{7}))
	})
})

var _ = Describe("Builder", func() {
	It("should reject a negative latency", func() {
		b := MakeBuilder().WithEngine(sim.NewSerialEngine()).WithLatency(-1)

		Expect(b.Validate()).To(MatchError(mem.ErrInvalidParameter))
		Expect(func() { b.Build("Mem") }).To(Panic())
	})

	It("should reject a zero capacity", func() {
		b := MakeBuilder().WithEngine(sim.NewSerialEngine()).WithNewStorage(0)

		Expect(b.Validate()).To(MatchError(mem.ErrInvalidSize))
	})

	It("should create the instruction and data ports", func() {
		c := MakeBuilder().WithEngine(sim.NewSerialEngine()).Build("Mem")

		Expect(c.InstPort().Name()).To(Equal("Mem.InstPort"))
		Expect(c.DataPort().Name()).To(Equal("Mem.DataPort"))
		Expect(c.GetPortByName("Data")).To(BeIdenticalTo(c.DataPort()))
		Expect(c.Latency).To(Equal(sim.VTimeInCycle(100)))
	})
})
