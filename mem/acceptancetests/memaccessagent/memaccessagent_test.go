package memaccessagent

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simplemem/mem/idealmemcontroller"
	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
)

var _ = Describe("MemAccessAgent", func() {
	var (
		engine *sim.SerialEngine
		memory *idealmemcontroller.Comp
		conn   *sim.DirectConnection
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		memory = idealmemcontroller.MakeBuilder().
			WithEngine(engine).
			WithLatency(10).
			WithNewStorage(1 * mem.MB).
			Build("Memory")
		conn = sim.NewDirectConnection("Conn", engine)
		conn.PlugIn(memory.DataPort())
		conn.PlugIn(memory.InstPort())
	})

	connect := func(agent *MemAccessAgent) {
		conn.PlugIn(agent.MemPort())
		agent.TickNow()
	}

	It("should issue scripted accesses one at a time", func() {
		accesses, err := ParseAccesses([]string{
			"W 0x1000 4 0xdeadbeef",
			"R 0x1000 4 0xdeadbeef",
		})
		Expect(err).NotTo(HaveOccurred())

		agent := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAccesses(accesses).
			WithValueCheck(true).
			Build("Agent")
		connect(agent)

		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Mismatches).To(BeEmpty())
		Expect(agent.Completions).To(HaveLen(2))
		Expect(agent.Completions[0].AcceptTime).To(Equal(sim.VTimeInCycle(0)))
		Expect(agent.Completions[0].CompleteTime).To(Equal(sim.VTimeInCycle(10)))
		Expect(agent.Completions[1].IssueTime).To(Equal(sim.VTimeInCycle(10)))
		Expect(agent.Completions[1].CompleteTime).To(Equal(sim.VTimeInCycle(20)))
		Expect(agent.Completions[1].Data).
			To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))
	})

	It("should report a read that returns an unexpected value", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAccesses([]Access{{
				Kind:    mem.AccessKindRead,
				Address: 0x40,
				Size:    1,
				Data:    []byte{1},
			}}).
			WithValueCheck(true).
			Build("Agent")
		connect(agent)

		Expect(engine.Run()).To(Succeed())

		Expect(agent.Mismatches).To(HaveLen(1))
	})

	It("should resend a refused request once the memory is available", func() {
		first := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAccesses([]Access{{Kind: mem.AccessKindRead, Address: 0, Size: 4}}).
			Build("First")
		second := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.InstPort().AsRemote()).
			WithAccesses([]Access{{Kind: mem.AccessKindRead, Address: 64, Size: 4}}).
			Build("Second")
		connect(first)
		connect(second)

		Expect(engine.Run()).To(Succeed())

		Expect(first.Completions[0].CompleteTime).To(Equal(sim.VTimeInCycle(10)))
		Expect(second.Completions[0].IssueTime).To(Equal(sim.VTimeInCycle(0)))
		Expect(second.Completions[0].AcceptTime).To(Equal(sim.VTimeInCycle(10)))
		Expect(second.Completions[0].CompleteTime).
			To(Equal(sim.VTimeInCycle(20)))
	})

	It("should generate random traffic that reads back its own writes", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAddressRange(0x10000, 0x1000).
			WithWriteLeft(50).
			WithReadLeft(50).
			WithSeed(7).
			WithValueCheck(true).
			Build("Agent")
		connect(agent)

		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Completions).To(HaveLen(100))
		Expect(agent.Mismatches).To(BeEmpty())

		for _, c := range agent.Completions {
			Expect(c.Access.Address).To(BeNumerically(">=", 0x10000))
			Expect(c.Access.Address).To(BeNumerically("<", 0x11000))
		}
	})

	It("should finish when reads are requested without writes", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAddressRange(0, 0x1000).
			WithReadLeft(5).
			WithWriteLeft(0).
			Build("Agent")
		connect(agent)

		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.ReadLeft).To(Equal(0))
		Expect(agent.WriteLeft).To(Equal(0))
		Expect(agent.Completions).To(BeEmpty())
	})

	It("should read back scripted writes when no random write is left", func() {
		agent := MakeBuilder().
			WithEngine(engine).
			WithLowModule(memory.DataPort().AsRemote()).
			WithAddressRange(0, 0x1000).
			WithAccesses([]Access{{
				Kind:    mem.AccessKindWrite,
				Address: 0x100,
				Size:    4,
				Data:    []byte{1, 2, 3, 4},
			}}).
			WithReadLeft(3).
			WithValueCheck(true).
			Build("Agent")
		connect(agent)

		Expect(engine.Run()).To(Succeed())

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Mismatches).To(BeEmpty())
		Expect(agent.Completions).To(HaveLen(4))

		for _, c := range agent.Completions[1:] {
			Expect(c.Access.Kind).To(Equal(mem.AccessKindRead))
			Expect(c.Access.Address).To(Equal(uint64(0x100)))
			Expect(c.Data).To(Equal([]byte{1, 2, 3, 4}))
		}
	})
})
