package cmd

import (
	"fmt"
	"io"
	"log"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/simplemem/config"
	"github.com/sarchlab/simplemem/datarecording"
	"github.com/sarchlab/simplemem/monitoring"
	"github.com/sarchlab/simplemem/platform"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/simulation"
	"github.com/sarchlab/simplemem/tracing"
)

type runOptions struct {
	configPath  string
	envFile     string
	traceDB     string
	monitor     bool
	monitorPort int
	openMonitor bool
	logEvents   bool
	logMsgs     bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a system described by a configuration file.",
		Long: "`run --config system.yaml` builds the system, runs it until " +
			"all requesters finish, and prints a report.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFiles(opts.envFile); err != nil {
				return err
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			return runSystem(cfg, opts, cmd.OutOrStdout())
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&opts.configPath, "config", "",
		"the YAML file that describes the system")
	flags.StringVar(&opts.envFile, "env-file", ".env",
		"the file to load SIMPLEMEM_ environment overrides from")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"record tasks into <trace-db>.sqlite3")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the monitoring web page while the simulation runs")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"the port of the monitoring server, random if not set")
	flags.BoolVar(&opts.openMonitor, "open-monitor", false,
		"open the monitoring page in a browser")
	flags.BoolVar(&opts.logEvents, "log-events", false,
		"print every event that the engine handles")
	flags.BoolVar(&opts.logMsgs, "log-msgs", false,
		"print every message that crosses a port")

	return runCmd
}

type systemTracers struct {
	steps       *tracing.StepCountTracer
	latency     *tracing.AverageTimeTracer
	cacheBusy   *tracing.BusyTimeTracer
	memoryBusy  *tracing.BusyTimeTracer
	progressBar *monitoring.ProgressBar
}

func buildSimulation(opts runOptions) *simulation.Simulation {
	builder := simulation.MakeBuilder()

	if opts.monitor {
		builder = builder.WithMonitorPort(opts.monitorPort)
	} else {
		builder = builder.WithoutMonitoring()
	}

	if opts.traceDB != "" {
		builder = builder.WithOutputFileName(opts.traceDB)
	} else {
		builder = builder.WithDataRecorder(datarecording.NewInMemory())
	}

	return builder.Build()
}

func runSystem(cfg config.SystemConfig, opts runOptions, out io.Writer) error {
	s := buildSimulation(opts)
	defer s.Terminate()

	p := platform.MakeBuilder().
		WithEngine(s.GetEngine()).
		WithConfig(cfg).
		Build("Sys")

	for _, c := range p.Components() {
		s.RegisterComponent(c)

		if opts.traceDB != "" {
			s.TraceComponent(c)
		}
	}

	attachLoggers(p, opts, out)
	tracers := attachTracers(s, p)

	if opts.monitor {
		port := s.StartMonitor()
		if opts.openMonitor {
			url := fmt.Sprintf("http://localhost:%d", port)
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(out, "cannot open %s: %v\n", url, err)
			}
		}
	}

	if err := p.Run(); err != nil {
		return err
	}

	if tracers.progressBar != nil {
		s.GetMonitor().CompleteProgressBar(tracers.progressBar)
	}

	now := s.GetEngine().CurrentTime()
	tracers.cacheBusy.TerminateAllTasks(now)
	tracers.memoryBusy.TerminateAllTasks(now)

	printReport(out, p, tracers, now)

	if !p.Done() {
		return fmt.Errorf("simulation ended at cycle %d with requests left", now)
	}

	return nil
}

func attachLoggers(p *platform.Platform, opts runOptions, out io.Writer) {
	logger := log.New(out, "", 0)

	if opts.logEvents {
		p.Engine.AcceptHook(sim.NewEventLogger(logger))
	}

	if opts.logMsgs {
		msgLogger := sim.NewPortMsgLogger(logger, p.Engine)
		for _, c := range p.Components() {
			for _, port := range c.Ports() {
				port.AcceptHook(msgLogger)
			}
		}
	}
}

func attachTracers(
	s *simulation.Simulation,
	p *platform.Platform,
) systemTracers {
	engine := s.GetEngine()
	reqIn := tracing.KindIs("req_in")

	t := systemTracers{
		steps:      tracing.NewStepCountTracer(reqIn),
		latency:    tracing.NewAverageTimeTracer(engine, tracing.KindIs("req_out")),
		cacheBusy:  tracing.NewBusyTimeTracer(engine, reqIn),
		memoryBusy: tracing.NewBusyTimeTracer(engine, reqIn),
	}

	tracing.CollectTrace(p.Cache, t.steps)
	tracing.CollectTrace(p.Cache, t.cacheBusy)
	tracing.CollectTrace(p.Memory, t.memoryBusy)

	for _, a := range p.AllAgents() {
		tracing.CollectTrace(a, t.latency)
	}

	if monitor := s.GetMonitor(); monitor != nil {
		t.progressBar = monitor.CreateProgressBar("Requests", totalAccesses(p))

		progress := monitoring.NewProgressTracer(
			t.progressBar, tracing.KindIs("req_out"))
		for _, a := range p.AllAgents() {
			tracing.CollectTrace(a, progress)
		}
	}

	return t
}

func totalAccesses(p *platform.Platform) uint64 {
	var total uint64

	for _, a := range p.AllAgents() {
		total += uint64(a.ReadLeft + a.WriteLeft + a.NumScripted())
	}

	return total
}
