package platform

import (
	"fmt"

	"github.com/sarchlab/simplemem/config"
	"github.com/sarchlab/simplemem/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/simplemem/mem/cache"
	"github.com/sarchlab/simplemem/mem/idealmemcontroller"
	"github.com/sarchlab/simplemem/sim"
)

// Builder can build platforms.
type Builder struct {
	engine sim.Engine
	cfg    config.SystemConfig
}

// MakeBuilder creates a builder with the default system configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig sets the system configuration.
func (b Builder) WithConfig(cfg config.SystemConfig) Builder {
	b.cfg = cfg
	return b
}

// Validate checks that the platform can be built.
func (b Builder) Validate() error {
	if b.engine == nil {
		return fmt.Errorf("engine is not set")
	}

	if err := b.cfg.Validate(); err != nil {
		return err
	}

	_, err := b.parseAccesses()

	return err
}

func (b Builder) parseAccesses() (map[*config.AgentConfig][]memaccessagent.Access, error) {
	accesses := make(map[*config.AgentConfig][]memaccessagent.Access)

	parse := func(a *config.AgentConfig) error {
		list, err := memaccessagent.ParseAccesses(a.Accesses)
		if err != nil {
			return err
		}

		accesses[a] = list

		return nil
	}

	for i := range b.cfg.Agents {
		if err := parse(&b.cfg.Agents[i]); err != nil {
			return nil, fmt.Errorf("agent %d: %w", i, err)
		}
	}

	if b.cfg.InstAgent != nil {
		if err := parse(b.cfg.InstAgent); err != nil {
			return nil, fmt.Errorf("instruction agent: %w", err)
		}
	}

	return accesses, nil
}

// Build creates the components and connects them.
func (b Builder) Build(name string) *Platform {
	if err := b.Validate(); err != nil {
		panic(fmt.Errorf("building %s: %w", name, err))
	}

	accesses, _ := b.parseAccesses()

	p := &Platform{Engine: b.engine}

	p.Memory = idealmemcontroller.MakeBuilder().
		WithEngine(b.engine).
		WithLatency(b.cfg.Memory.Latency).
		WithNewStorage(uint64(b.cfg.Memory.Capacity)).
		Build(sim.BuildName(name, "Memory"))

	p.Cache = cache.MakeBuilder().
		WithEngine(b.engine).
		WithLatency(b.cfg.Cache.Latency).
		WithSize(uint64(b.cfg.Cache.Size)).
		WithBlockSize(uint64(b.cfg.Cache.BlockSize)).
		WithNumPorts(b.cfg.Cache.NumPorts).
		WithLowModule(p.Memory.DataPort().AsRemote()).
		WithFunctionalBackend(p.Memory).
		Build(sim.BuildName(name, "Cache"))

	memConn := sim.NewDirectConnection(sim.BuildName(name, "MemConn"), b.engine)
	memConn.PlugIn(p.Cache.MemSidePort())
	memConn.PlugIn(p.Memory.DataPort())
	p.Connections = append(p.Connections, memConn)

	for i := range b.cfg.Agents {
		agentCfg := &b.cfg.Agents[i]
		agent := b.buildAgent(
			sim.BuildNameWithIndex(name, "Agent", i),
			agentCfg,
			accesses[agentCfg],
			p.Cache.TopPort(agentCfg.Port).AsRemote(),
			false,
		)

		conn := sim.NewDirectConnection(
			sim.BuildNameWithIndex(name, "AgentConn", i), b.engine)
		conn.PlugIn(agent.MemPort())
		conn.PlugIn(p.Cache.TopPort(agentCfg.Port))

		p.Agents = append(p.Agents, agent)
		p.Connections = append(p.Connections, conn)
	}

	if b.cfg.InstAgent != nil {
		p.InstAgent = b.buildAgent(
			sim.BuildName(name, "InstAgent"),
			b.cfg.InstAgent,
			accesses[b.cfg.InstAgent],
			p.Memory.InstPort().AsRemote(),
			true,
		)

		conn := sim.NewDirectConnection(
			sim.BuildName(name, "InstConn"), b.engine)
		conn.PlugIn(p.InstAgent.MemPort())
		conn.PlugIn(p.Memory.InstPort())
		p.Connections = append(p.Connections, conn)
	}

	return p
}

// buildAgent creates an agent. Read values are only checked for agents that
// talk to the memory directly, as dirty blocks are dropped on eviction from
// the cache.
func (b Builder) buildAgent(
	name string,
	cfg *config.AgentConfig,
	accesses []memaccessagent.Access,
	lowModule sim.RemotePort,
	checkValues bool,
) *memaccessagent.MemAccessAgent {
	builder := memaccessagent.MakeBuilder().
		WithEngine(b.engine).
		WithLowModule(lowModule).
		WithAccesses(accesses).
		WithReadLeft(cfg.Reads).
		WithWriteLeft(cfg.Writes).
		WithValueCheck(checkValues)

	if cfg.Seed != 0 {
		builder = builder.WithSeed(cfg.Seed)
	}

	if cfg.AddressRange != 0 {
		builder = builder.WithAddressRange(
			cfg.AddressBase, uint64(cfg.AddressRange))
	}

	return builder.Build(name)
}
