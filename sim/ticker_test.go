package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingTicker struct {
	engine    Engine
	remaining int
	tickTimes []VTimeInCycle
}

func (t *countingTicker) Tick() bool {
	t.tickTimes = append(t.tickTimes, t.engine.CurrentTime())

	if t.remaining == 0 {
		return false
	}

	t.remaining--

	return true
}

var _ = Describe("TickingComponent", func() {
	var (
		engine *SerialEngine
		ticker *countingTicker
		tc     *TickingComponent
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		ticker = &countingTicker{engine: engine, remaining: 3}
		tc = NewTickingComponent("Comp", engine, ticker)
	})

	It("should tick until no progress is made", func() {
		tc.TickNow()

		Expect(engine.Run()).To(Succeed())
		Expect(ticker.tickTimes).To(Equal([]VTimeInCycle{0, 1, 2, 3}))
	})

	It("should not schedule duplicated ticks", func() {
		ticker.remaining = 0
		tc.TickLater()
		tc.TickLater()

		Expect(engine.Run()).To(Succeed())
		Expect(ticker.tickTimes).To(Equal([]VTimeInCycle{1}))
	})

	It("should tick in the same cycle when notified", func() {
		ticker.remaining = 0
		tc.NotifyAvailable(nil)

		Expect(engine.Run()).To(Succeed())
		Expect(ticker.tickTimes).To(Equal([]VTimeInCycle{0}))
	})
})
