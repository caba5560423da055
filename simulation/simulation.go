// Package simulation bundles the services that a simulation run needs: the
// engine, the data recorder, the trace database and the monitor.
package simulation

import (
	"github.com/sarchlab/simplemem/datarecording"
	"github.com/sarchlab/simplemem/monitoring"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id         string
	outputPath string
	engine     sim.Engine

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	monitor      *monitoring.Monitor
	visTracer    *tracing.DBTracer

	components    []sim.Component
	compNameIndex map[string]int
	ports         []sim.Port
	portNameIndex map[string]int

	terminated bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// OutputPath returns the database file that the simulation records into. It
// is empty if the simulation records into a custom recorder.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetVisTracer returns the tracer that writes tasks into the database.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// RegisterComponent registers a component with the simulation.
func (s *Simulation) RegisterComponent(c sim.Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic("component " + compName + " already registered")
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	for _, p := range c.Ports() {
		s.registerPort(p)
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

func (s *Simulation) registerPort(p sim.Port) {
	portName := p.Name()
	if _, found := s.portNameIndex[portName]; found {
		panic("port " + portName + " already registered")
	}

	s.ports = append(s.ports, p)
	s.portNameIndex[portName] = len(s.ports) - 1
}

// Components returns all the registered components in registration order.
func (s *Simulation) Components() []sim.Component {
	return append([]sim.Component(nil), s.components...)
}

// GetComponentByName returns the component with the given name. It returns
// nil if no component has the name.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	i, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[i]
}

// GetPortByName returns the port with the given name. It returns nil if no
// port has the name.
func (s *Simulation) GetPortByName(name string) sim.Port {
	i, found := s.portNameIndex[name]
	if !found {
		return nil
	}

	return s.ports[i]
}

// TraceComponent makes the trace database record the tasks of the domain.
func (s *Simulation) TraceComponent(domain tracing.NamedHookable) {
	tracing.CollectTrace(domain, s.visTracer)
}

// StartMonitor starts the monitoring server and returns its port. It returns
// 0 if monitoring is disabled.
func (s *Simulation) StartMonitor() int {
	if s.monitor == nil {
		return 0
	}

	return s.monitor.StartServer()
}

// Terminate writes the unfinished traces, records the end of the execution
// and closes the data recorder.
func (s *Simulation) Terminate() {
	if s.terminated {
		return
	}

	s.terminated = true

	s.visTracer.Terminate()
	s.execRecorder.End()
	s.dataRecorder.Close()

	if s.monitor != nil {
		s.monitor.StopServer()
	}
}
