package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/simplemem/mem/acceptancetests/memaccessagent"
	"github.com/sarchlab/simplemem/platform"
	"github.com/sarchlab/simplemem/sim"
)

func printCompletions(out io.Writer, agent *memaccessagent.MemAccessAgent) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "%s\n", agent.Name())
	fmt.Fprintln(w, "access\tissue\taccept\tcomplete\tdata")

	for _, c := range agent.Completions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%x\n",
			c.Access, c.IssueTime, c.AcceptTime, c.CompleteTime, c.Data)
	}

	w.Flush()

	for _, m := range agent.Mismatches {
		fmt.Fprintf(out, "mismatch: %s\n", m)
	}
}

func printReport(
	out io.Writer,
	p *platform.Platform,
	t systemTracers,
	now sim.VTimeInCycle,
) {
	for _, a := range p.AllAgents() {
		printCompletions(out, a)
		fmt.Fprintln(out)
	}

	hits := t.steps.GetStepCount("read-hit") + t.steps.GetStepCount("write-hit")
	misses := t.steps.GetStepCount("read-miss") +
		t.steps.GetStepCount("write-miss")

	fmt.Fprintf(out, "end cycle: %d\n", now)
	fmt.Fprintf(out, "cache hits: %d\n", hits)
	fmt.Fprintf(out, "cache misses: %d\n", misses)
	fmt.Fprintf(out, "cache hit ratio: %.2f\n", hitRatio(hits, misses))
	fmt.Fprintf(out, "cache evictions: %d\n", t.steps.GetStepCount("evict"))
	fmt.Fprintf(out, "average request latency: %.2f cycles (%d requests)\n",
		t.latency.AverageTime(), t.latency.TotalCount())
	fmt.Fprintf(out, "cache busy: %d cycles\n", t.cacheBusy.BusyTime())
	fmt.Fprintf(out, "memory busy: %d cycles\n", t.memoryBusy.BusyTime())
}

func hitRatio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}

	return float64(hits) / float64(hits+misses)
}
