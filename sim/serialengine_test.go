package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingEndHandler struct {
	now   VTimeInCycle
	count int
}

func (h *countingEndHandler) Handle(now VTimeInCycle) {
	h.now = now
	h.count++
}

type failingHandler struct{}

func (failingHandler) Handle(_ Event) error {
	return errors.New("boom")
}

var _ = Describe("SerialEngine", func() {
	var (
		engine  *SerialEngine
		handler *recordingHandler
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		handler = &recordingHandler{engine: engine}
	})

	It("should handle events in time order", func() {
		evt1 := NewEventBase(10, handler)
		evt2 := NewEventBase(2, handler)
		evt3 := NewEventBase(5, handler)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())
		Expect(handler.handled).To(Equal([]Event{evt2, evt3, evt1}))
		Expect(handler.times).To(Equal([]VTimeInCycle{2, 5, 10}))
		Expect(engine.CurrentTime()).To(Equal(VTimeInCycle(10)))
	})

	It("should handle secondary events after primary events", func() {
		secondary := NewSecondaryEventBase(3, handler)
		primary := NewEventBase(3, handler)

		engine.Schedule(secondary)
		engine.Schedule(primary)

		Expect(engine.Run()).To(Succeed())
		Expect(handler.handled).To(Equal([]Event{primary, secondary}))
	})

	It("should handle events scheduled during the run", func() {
		later := NewEventBase(7, handler)
		handler.onEvent = func(e Event) {
			if e.Time() == 1 {
				engine.Schedule(later)
			}
		}

		engine.Schedule(NewEventBase(1, handler))

		Expect(engine.Run()).To(Succeed())
		Expect(handler.times).To(Equal([]VTimeInCycle{1, 7}))
	})

	It("should panic when scheduling an event in the past", func() {
		handler.onEvent = func(e Event) {
			engine.Schedule(NewEventBase(1, handler))
		}
		engine.Schedule(NewEventBase(4, handler))

		Expect(func() { _ = engine.Run() }).To(Panic())
	})

	It("should stop and return the error of a handler", func() {
		engine.Schedule(NewEventBase(1, failingHandler{}))
		engine.Schedule(NewEventBase(2, handler))

		err := engine.Run()

		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(handler.handled).To(BeEmpty())
	})

	It("should invoke hooks around events", func() {
		var positions []*HookPos
		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		engine.Schedule(NewEventBase(1, handler))
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal(
			[]*HookPos{HookPosBeforeEvent, HookPosAfterEvent}))
	})

	It("should call simulation end handlers", func() {
		endHandler := &countingEndHandler{}
		engine.RegisterSimulationEndHandler(endHandler)

		engine.Schedule(NewEventBase(9, handler))
		Expect(engine.Run()).To(Succeed())
		engine.Finished()

		Expect(endHandler.count).To(Equal(1))
		Expect(endHandler.now).To(Equal(VTimeInCycle(9)))
	})
})
