package simulation

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/simplemem/datarecording"
	"github.com/sarchlab/simplemem/sim"
	"github.com/sarchlab/simplemem/tracing"
)

type sampleComp struct {
	*sim.ComponentBase
}

func (c *sampleComp) Handle(_ sim.Event) error {
	return nil
}

func (c *sampleComp) Recv(_ sim.Port, _ sim.Msg) bool {
	return true
}

func (c *sampleComp) NotifyAvailable(_ sim.Port) {}

func newSampleComp(name string) *sampleComp {
	c := &sampleComp{ComponentBase: sim.NewComponentBase(name)}
	c.AddPort("Port", sim.NewPort(c, name+".Port"))

	return c
}

func newMemoryDB() *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	Expect(err).NotTo(HaveOccurred())
	db.SetMaxOpenConns(1)

	return db
}

var _ = Describe("Simulation", func() {
	var (
		db         *sql.DB
		simulation *Simulation
	)

	BeforeEach(func() {
		db = newMemoryDB()
		simulation = MakeBuilder().
			WithoutMonitoring().
			WithDataRecorder(datarecording.NewWithDB(db)).
			Build()
	})

	AfterEach(func() {
		simulation.Terminate()
	})

	It("should register a component and its ports", func() {
		comp := newSampleComp("Comp")

		simulation.RegisterComponent(comp)

		Expect(simulation.GetComponentByName("Comp")).To(BeIdenticalTo(comp))
		Expect(simulation.GetPortByName("Comp.Port")).
			To(BeIdenticalTo(comp.GetPortByName("Port")))
		Expect(simulation.GetComponentByName("Other")).To(BeNil())
	})

	It("should return all registered components", func() {
		a := newSampleComp("A")
		b := newSampleComp("B")

		simulation.RegisterComponent(a)
		simulation.RegisterComponent(b)

		comps := simulation.Components()
		Expect(comps).To(HaveLen(2))
		Expect(comps[0]).To(BeIdenticalTo(a))
		Expect(comps[1]).To(BeIdenticalTo(b))
	})

	It("should panic when a component is registered twice", func() {
		comp := newSampleComp("Comp")
		simulation.RegisterComponent(comp)

		Expect(func() { simulation.RegisterComponent(comp) }).To(Panic())
	})

	It("should record traced tasks when terminated", func() {
		comp := newSampleComp("Comp")
		simulation.TraceComponent(comp)

		tracing.StartTask("1", "", comp, "req_in", "read", nil)
		simulation.GetVisTracer().Terminate()

		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM trace")
		Expect(row.Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("should trace registered components", func() {
		simulation.RegisterComponent(newSampleComp("A"))
		simulation.RegisterComponent(newSampleComp("B"))

		for _, c := range simulation.Components() {
			simulation.TraceComponent(c)
			Expect(c.NumHooks()).To(Equal(1))
			Expect(c.Hooks()).To(HaveLen(1))
		}
	})

	It("should record the execution when terminated", func() {
		simulation.Terminate()

		Expect(simulation.GetDataRecorder().ListTables()).
			To(ContainElement("exec_info"))
	})

	It("should not start a monitor when monitoring is disabled", func() {
		Expect(simulation.GetMonitor()).To(BeNil())
		Expect(simulation.StartMonitor()).To(Equal(0))
	})

	It("should panic if the monitor port is set without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithoutMonitoring().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	Context("with an output file", func() {
		It("should write into the named database", func() {
			path := filepath.Join(GinkgoT().TempDir(), "custom")
			custom := MakeBuilder().
				WithoutMonitoring().
				WithOutputFileName(path).
				Build()

			Expect(custom.OutputPath()).To(Equal(path + ".sqlite3"))

			custom.Terminate()

			_, err := os.Stat(path + ".sqlite3")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("with monitoring", func() {
		It("should register components with the monitor", func() {
			monitored := MakeBuilder().
				WithDataRecorder(datarecording.NewWithDB(newMemoryDB())).
				Build()
			defer monitored.Terminate()

			monitored.RegisterComponent(newSampleComp("Comp"))

			Expect(monitored.GetMonitor()).NotTo(BeNil())
		})
	})
})
