// Package platform assembles requesters, a cache and a memory controller into
// a runnable system.
package platform

import (
	"github.com/sarchlab/simplemem/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/simplemem/mem/cache"
	"github.com/sarchlab/simplemem/mem/idealmemcontroller"
	"github.com/sarchlab/simplemem/sim"
)

// A Platform is a cache in front of a memory controller, with agents
// connected to the cache ports and optionally to the instruction port of the
// memory controller.
type Platform struct {
	Engine    sim.Engine
	Cache     *cache.Comp
	Memory    *idealmemcontroller.Comp
	Agents    []*memaccessagent.MemAccessAgent
	InstAgent *memaccessagent.MemAccessAgent

	Connections []*sim.DirectConnection
}

// Components returns all the components of the platform.
func (p *Platform) Components() []sim.Component {
	comps := []sim.Component{p.Cache, p.Memory}

	for _, a := range p.Agents {
		comps = append(comps, a)
	}

	if p.InstAgent != nil {
		comps = append(comps, p.InstAgent)
	}

	return comps
}

// AllAgents returns the agents on the cache followed by the instruction
// agent.
func (p *Platform) AllAgents() []*memaccessagent.MemAccessAgent {
	agents := append([]*memaccessagent.MemAccessAgent(nil), p.Agents...)
	if p.InstAgent != nil {
		agents = append(agents, p.InstAgent)
	}

	return agents
}

// Start schedules the first tick of every agent at the current time, in the
// order of AllAgents.
func (p *Platform) Start() {
	for _, a := range p.AllAgents() {
		a.TickNow()
	}
}

// Run starts the agents and runs the engine until no event is left.
func (p *Platform) Run() error {
	p.Start()

	return p.Engine.Run()
}

// Done returns true if every agent has completed all its accesses.
func (p *Platform) Done() bool {
	for _, a := range p.AllAgents() {
		if !a.Done() {
			return false
		}
	}

	return true
}
