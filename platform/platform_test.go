package platform

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simplemem/config"
	"github.com/sarchlab/simplemem/mem/cache"
	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

// outstandingChecker fails the test if the cache starts serving a request
// before it has responded to the previous one.
type outstandingChecker struct {
	sync.Mutex
	cache      *cache.Comp
	inflight   map[string]bool
	maxInTime  int
	numStarted int
}

func newOutstandingChecker(c *cache.Comp) *outstandingChecker {
	return &outstandingChecker{cache: c, inflight: make(map[string]bool)}
}

func (t *outstandingChecker) StartTask(task tracing.Task) {
	if task.Kind != "req_in" {
		return
	}

	t.Lock()
	defer t.Unlock()

	Expect(t.inflight).To(BeEmpty())
	Expect(t.cache.Pending()).NotTo(BeNil())

	t.inflight[task.ID] = true
	t.numStarted++

	if len(t.inflight) > t.maxInTime {
		t.maxInTime = len(t.inflight)
	}
}

func (t *outstandingChecker) StepTask(_ tracing.Task) {}

func (t *outstandingChecker) EndTask(task tracing.Task) {
	t.Lock()
	defer t.Unlock()

	delete(t.inflight, task.ID)
}

func scenarioConfig() config.SystemConfig {
	cfg := config.Default()
	cfg.Cache.Latency = 1
	cfg.Cache.Size = config.Size(16 * mem.KB)
	cfg.Cache.BlockSize = 64
	cfg.Memory.Latency = 10

	return cfg
}

func completionTimes(p *Platform, agent int) []sim.VTimeInCycle {
	times := []sim.VTimeInCycle{}
	for _, c := range p.Agents[agent].Completions {
		times = append(times, c.CompleteTime)
	}

	return times
}

var _ = Describe("Platform", func() {
	var (
		engine *sim.SerialEngine
		cfg    config.SystemConfig
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		cfg = scenarioConfig()
	})

	build := func() *Platform {
		return MakeBuilder().
			WithEngine(engine).
			WithConfig(cfg).
			Build("Sys")
	}

	It("should respond to a miss at 11 and a following hit at 12", func() {
		cfg.Agents = []config.AgentConfig{{
			Port:     0,
			Accesses: []string{"R 0x1000 4", "R 0x1000 4"},
		}}
		p := build()

		Expect(p.Run()).To(Succeed())

		Expect(completionTimes(p, 0)).
			To(Equal([]sim.VTimeInCycle{11, 12}))
		Expect(p.Cache.IsResident(0x1000)).To(BeTrue())
		Expect(p.Cache.Pending()).To(BeNil())
		Expect(p.Done()).To(BeTrue())
	})

	It("should serve a hit in exactly the cache latency", func() {
		cfg.Cache.Latency = 3
		cfg.Agents = []config.AgentConfig{{
			Port:     0,
			Accesses: []string{"R 0x40 4", "R 0x44 4"},
		}}
		p := build()

		Expect(p.Run()).To(Succeed())

		second := p.Agents[0].Completions[1]
		Expect(second.CompleteTime - second.AcceptTime).
			To(Equal(sim.VTimeInCycle(3)))
	})

	It("should return written data after write allocation", func() {
		cfg.Agents = []config.AgentConfig{{
			Port: 0,
			Accesses: []string{
				"W 0x2000 4 0xdeadbeef",
				"R 0x2000 4",
			},
		}}
		p := build()

		Expect(p.Run()).To(Succeed())

		completions := p.Agents[0].Completions
		Expect(completions).To(HaveLen(2))
		Expect(completions[0].CompleteTime).To(Equal(sim.VTimeInCycle(11)))
		Expect(completions[1].CompleteTime).To(Equal(sim.VTimeInCycle(12)))
		Expect(completions[1].Data).To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))

		memData, err := p.Memory.FunctionalRead(0x2000, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(memData).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should serve the second port after the first completes", func() {
		cfg.Cache.NumPorts = 2
		cfg.Agents = []config.AgentConfig{
			{Port: 0, Accesses: []string{"R 0x1000 4"}},
			{Port: 1, Accesses: []string{"R 0x2000 4"}},
		}
		p := build()

		Expect(p.Run()).To(Succeed())

		first := p.Agents[0].Completions[0]
		second := p.Agents[1].Completions[0]

		Expect(first.AcceptTime).To(Equal(sim.VTimeInCycle(0)))
		Expect(first.CompleteTime).To(Equal(sim.VTimeInCycle(11)))
		Expect(second.IssueTime).To(Equal(sim.VTimeInCycle(0)))
		Expect(second.AcceptTime).To(Equal(sim.VTimeInCycle(11)))
		Expect(second.CompleteTime).To(Equal(sim.VTimeInCycle(22)))
	})

	It("should keep one request outstanding under random traffic", func() {
		cfg.Cache.NumPorts = 4
		cfg.Cache.Size = config.Size(1 * mem.KB)
		for i := 0; i < 4; i++ {
			cfg.Agents = append(cfg.Agents, config.AgentConfig{
				Port:         i,
				Reads:        100,
				Writes:       100,
				Seed:         int64(i + 1),
				AddressBase:  uint64(i) * 0x10000,
				AddressRange: config.Size(4 * mem.KB),
			})
		}
		p := build()

		checker := newOutstandingChecker(p.Cache)
		tracing.CollectTrace(p.Cache, checker)

		Expect(p.Run()).To(Succeed())

		Expect(p.Done()).To(BeTrue())
		Expect(checker.numStarted).To(Equal(800))
		Expect(checker.maxInTime).To(Equal(1))
		Expect(p.Cache.Pending()).To(BeNil())

		for _, a := range p.Agents {
			Expect(a.Completions).To(HaveLen(200))

			for _, c := range a.Completions {
				Expect(c.CompleteTime - c.AcceptTime).
					To(BeNumerically(">=", cfg.Cache.Latency))
			}
		}
	})

	It("should count hits and misses", func() {
		cfg.Agents = []config.AgentConfig{{
			Port: 0,
			Accesses: []string{
				"R 0x0 4", "R 0x4 4", "W 0x8 4 0x1", "R 0x40 4",
			},
		}}
		p := build()

		steps := tracing.NewStepCountTracer(nil)
		tracing.CollectTrace(p.Cache, steps)

		Expect(p.Run()).To(Succeed())

		Expect(steps.GetStepCount("read-miss")).To(Equal(uint64(2)))
		Expect(steps.GetStepCount("read-hit")).To(Equal(uint64(1)))
		Expect(steps.GetStepCount("write-hit")).To(Equal(uint64(1)))
	})

	It("should serve the data port before the instruction port", func() {
		cfg.Agents = []config.AgentConfig{
			{Port: 0, Accesses: []string{"R 0x1000 4"}},
		}
		cfg.InstAgent = &config.AgentConfig{
			Accesses: []string{"R 0x8000 4", "R 0x8004 4"},
		}

		run := func() []sim.VTimeInCycle {
			engine = sim.NewSerialEngine()
			p := build()

			// The instruction agent issues first so that the cache fill
			// waits on the data port while the memory is busy.
			p.InstAgent.TickNow()
			Expect(p.Run()).To(Succeed())

			return []sim.VTimeInCycle{
				p.InstAgent.Completions[0].CompleteTime,
				p.Agents[0].Completions[0].CompleteTime,
				p.InstAgent.Completions[1].CompleteTime,
			}
		}

		first := run()
		Expect(first).To(Equal([]sim.VTimeInCycle{10, 21, 30}))
		Expect(run()).To(Equal(first))
	})

	It("should panic on an invalid configuration", func() {
		cfg.Cache.Size = 100

		Expect(func() { build() }).To(Panic())
	})

	It("should panic on an invalid scripted access", func() {
		cfg.Agents = []config.AgentConfig{{
			Port:     0,
			Accesses: []string{"X 0x0 4"},
		}}

		Expect(MakeBuilder().WithEngine(engine).WithConfig(cfg).Validate()).
			To(MatchError(ContainSubstring("agent 0")))
	})
})
