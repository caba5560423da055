package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/simplemem/config"
	"github.com/sarchlab/simplemem/mem/mem"
	"github.com/sarchlab/simplemem/platform"
	"github.com/sarchlab/simplemem/sim"
)

// scenarioConfig is a 16kB cache of 64-byte blocks with a latency of 1 cycle
// in front of a memory with a latency of 10 cycles. One requester reads the
// same address twice.
func scenarioConfig() config.SystemConfig {
	cfg := config.Default()
	cfg.Cache.Latency = 1
	cfg.Cache.Size = config.Size(16 * mem.KB)
	cfg.Cache.BlockSize = 64
	cfg.Cache.NumPorts = 1
	cfg.Memory.Latency = 10
	cfg.Agents = []config.AgentConfig{{
		Port:     0,
		Accesses: []string{"R 0x1000 4", "R 0x1000 4"},
	}}

	return cfg
}

func newScenarioCmd() *cobra.Command {
	var printConfig bool

	scenarioCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run the built-in miss-then-hit scenario.",
		Long: "`scenario` reads address 0x1000 twice through a cold cache and " +
			"prints the cycle of each response.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg := scenarioConfig()

			if printConfig {
				return cfg.Encode(out)
			}

			p := platform.MakeBuilder().
				WithEngine(sim.NewSerialEngine()).
				WithConfig(cfg).
				Build("Sys")

			if err := p.Run(); err != nil {
				return err
			}

			for i, c := range p.Agents[0].Completions {
				fmt.Fprintf(out, "response %d (%s) at cycle %d\n",
					i, c.Access, c.CompleteTime)
			}

			return nil
		},
	}

	scenarioCmd.Flags().BoolVar(&printConfig, "print-config", false,
		"print the configuration of the scenario as YAML and exit")

	return scenarioCmd
}
