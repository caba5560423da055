package idealmemcontroller

import (
	"fmt"

	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/sim"
)

// A Builder can build ideal memory controllers.
type Builder struct {
	latency  int
	capacity uint64
	engine   sim.Engine
	storage  *mem.Storage
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency:  100,
		capacity: 4 * mem.GB,
	}
}

// WithLatency sets the number of cycles to serve a request.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of a new storage to be created.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithEngine sets the engine of the memory controller
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithStorage sets an existing storage, which may be shared with other
// components.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Validate checks the parameters of the builder.
func (b Builder) Validate() error {
	if b.latency < 0 {
		return fmt.Errorf("%w: latency %d is negative",
			mem.ErrInvalidParameter, b.latency)
	}

	if b.storage == nil && b.capacity == 0 {
		return fmt.Errorf("%w: capacity must be positive", mem.ErrInvalidSize)
	}

	if b.engine == nil {
		return fmt.Errorf("%w: engine is not set", mem.ErrInvalidParameter)
	}

	return nil
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	if err := b.Validate(); err != nil {
		panic(fmt.Errorf("building %s: %w", name, err))
	}

	c := &Comp{
		engine:  b.engine,
		Latency: sim.VTimeInCycle(b.latency),
	}

	c.ComponentBase = sim.NewComponentBase(name)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.instPort = sim.NewPort(c, name+".InstPort")
	c.AddPort("Inst", c.instPort)

	c.dataPort = sim.NewPort(c, name+".DataPort")
	c.AddPort("Data", c.dataPort)

	return c
}
