package cache

import (
	"fmt"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
)

// Builder can build caches.
type Builder struct {
	engine    sim.Engine
	latency   int
	size      uint64
	blockSize uint64
	numPorts  int
	lowModule sim.RemotePort
	backend   mem.FunctionalAccessor
}

// MakeBuilder creates a new builder with a 16KB cache of 64-byte blocks, a
// single requester port, and a latency of 1 cycle.
func MakeBuilder() Builder {
	return Builder{
		latency:   1,
		size:      16 * mem.KB,
		blockSize: 64,
		numPorts:  1,
	}
}

// WithEngine sets the engine of the builder.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithLatency sets the number of cycles to look up or fill a block.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithSize sets the capacity of the cache in bytes.
func (b Builder) WithSize(size uint64) Builder {
	b.size = size
	return b
}

// WithBlockSize sets the size of each block in bytes.
func (b Builder) WithBlockSize(blockSize uint64) Builder {
	b.blockSize = blockSize
	return b
}

// WithNumPorts sets the number of requester-side ports.
func (b Builder) WithNumPorts(n int) Builder {
	b.numPorts = n
	return b
}

// WithLowModule sets the port that misses are sent to.
func (b Builder) WithLowModule(port sim.RemotePort) Builder {
	b.lowModule = port
	return b
}

// WithFunctionalBackend sets where functional accesses that miss go.
func (b Builder) WithFunctionalBackend(backend mem.FunctionalAccessor) Builder {
	b.backend = backend
	return b
}

// Validate checks the parameters of the builder.
func (b Builder) Validate() error {
	if b.latency < 0 {
		return fmt.Errorf("%w: latency %d is negative",
			mem.ErrInvalidParameter, b.latency)
	}

	if b.numPorts < 1 {
		return fmt.Errorf("%w: need at least one requester port, got %d",
			mem.ErrInvalidParameter, b.numPorts)
	}

	if err := blockStoreSizeMustBeValid(b.size, b.blockSize); err != nil {
		return err
	}

	if b.engine == nil {
		return fmt.Errorf("%w: engine is not set", mem.ErrInvalidParameter)
	}

	return nil
}

// Build builds a cache.
func (b Builder) Build(name string) *Comp {
	if err := b.Validate(); err != nil {
		panic(fmt.Errorf("building %s: %w", name, err))
	}

	blocks, err := NewBlockStore(b.size, b.blockSize)
	if err != nil {
		panic(err)
	}

	c := &Comp{
		engine:    b.engine,
		Latency:   sim.VTimeInCycle(b.latency),
		blocks:    blocks,
		lowModule: b.lowModule,
		backend:   b.backend,
	}
	c.ComponentBase = sim.NewComponentBase(name)

	for i := 0; i < b.numPorts; i++ {
		port := sim.NewPort(c, sim.BuildNameWithIndex(name, "Top", i))
		c.topPorts = append(c.topPorts, port)
		c.AddPort(fmt.Sprintf("Top[%d]", i), port)
	}

	c.memPort = sim.NewPort(c, name+".MemSide")
	c.AddPort("MemSide", c.memPort)

	return c
}
