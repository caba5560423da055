package memaccessagent

import (
	"math/rand"

	"github.com/sarchlab/simplemem/sim"
)

// Builder can build MemAccessAgents.
type Builder struct {
	engine      sim.Engine
	addressBase uint64
	maxAddress  uint64
	writeLeft   int
	readLeft    int
	seed        int64
	checkValues bool
	scriptSize  int
	lowModule   sim.RemotePort
	accesses    []Access
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		maxAddress: 1024 * 1024,
		seed:       1,
		scriptSize: 4096,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithAddressRange limits random accesses to [base, base+size).
func (b Builder) WithAddressRange(base, size uint64) Builder {
	b.addressBase = base
	b.maxAddress = size
	return b
}

// WithWriteLeft sets the number of random writes to issue.
func (b Builder) WithWriteLeft(write int) Builder {
	b.writeLeft = write
	return b
}

// WithReadLeft sets the number of random reads to issue.
func (b Builder) WithReadLeft(read int) Builder {
	b.readLeft = read
	return b
}

// WithSeed sets the seed of the random access generator.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithValueCheck makes the agent compare read data with the expected value.
func (b Builder) WithValueCheck(check bool) Builder {
	b.checkValues = check
	return b
}

// WithLowModule sets the port that receives the requests.
func (b Builder) WithLowModule(port sim.RemotePort) Builder {
	b.lowModule = port
	return b
}

// WithAccesses sets the scripted accesses.
func (b Builder) WithAccesses(accesses []Access) Builder {
	b.accesses = accesses
	if len(accesses) > b.scriptSize {
		b.scriptSize = len(accesses)
	}

	return b
}

// Build creates a MemAccessAgent.
func (b Builder) Build(name string) *MemAccessAgent {
	agent := new(MemAccessAgent)
	agent.TickingComponent = sim.NewTickingComponent(name, b.engine, agent)

	agent.LowModule = b.lowModule
	agent.AddressBase = b.addressBase
	agent.MaxAddress = b.maxAddress
	agent.WriteLeft = b.writeLeft
	agent.ReadLeft = b.readLeft
	agent.CheckValues = b.checkValues
	agent.KnownMemValue = make(map[uint64]uint32)
	agent.rand = rand.New(rand.NewSource(b.seed))

	agent.script = sim.NewBuffer(name+".Script", b.scriptSize)
	agent.Enqueue(b.accesses...)

	agent.memPort = sim.NewPort(agent, name+".Mem")
	agent.AddPort("Mem", agent.memPort)

	return agent
}
