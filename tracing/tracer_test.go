package tracing

import (
	"database/sql"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/simplemem/datarecording"
	"github.com/sarchlab/simplemem/sim"
)

type sampleDomain struct {
	sim.HookableBase
	name string
}

func (d *sampleDomain) Name() string {
	return d.name
}

var _ = Describe("Tracers", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		now        sim.VTimeInCycle
		domain     *sampleDomain
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		timeTeller.EXPECT().CurrentTime().
			DoAndReturn(func() sim.VTimeInCycle { return now }).
			AnyTimes()
		now = 0
		domain = &sampleDomain{name: "Domain"}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should not invoke anything without hooks", func() {
		Expect(func() {
			StartTask("", "", domain, "", "", nil)
		}).NotTo(Panic())
	})

	It("should panic on tasks without required fields", func() {
		CollectTrace(domain, NewStepCountTracer(nil))

		Expect(func() {
			StartTask("", "", domain, "req_in", "read", nil)
		}).To(Panic())
	})

	It("should refuse to attach the same tracer twice", func() {
		tracer := NewStepCountTracer(nil)
		CollectTrace(domain, tracer)

		Expect(func() { CollectTrace(domain, tracer) }).To(Panic())
	})

	It("should compute the average time", func() {
		tracer := NewAverageTimeTracer(timeTeller, KindIs("req_in"))
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "req_in", "read", nil)
		StartTask("2", "", domain, "req_in", "read", nil)
		StartTask("3", "", domain, "req_out", "read", nil)
		now = 4
		EndTask("1", domain)
		now = 10
		EndTask("2", domain)
		EndTask("3", domain)

		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
		Expect(tracer.AverageTime()).To(BeNumerically("~", 7.0))
	})

	It("should count steps per task", func() {
		tracer := NewStepCountTracer(KindIs("req_in"))
		CollectTrace(domain, tracer)

		StartTask("1", "", domain, "req_in", "read", nil)
		StartTask("2", "", domain, "req_in", "read", nil)
		AddTaskStep("1", domain, "read-miss")
		AddTaskStep("1", domain, "read-miss")
		AddTaskStep("2", domain, "read-hit")
		EndTask("1", domain)
		EndTask("2", domain)

		Expect(tracer.GetStepNames()).To(Equal([]string{"read-miss", "read-hit"}))
		Expect(tracer.GetStepCount("read-miss")).To(Equal(uint64(2)))
		Expect(tracer.GetTaskCount("read-miss")).To(Equal(uint64(1)))
		Expect(tracer.GetTaskCount("read-hit")).To(Equal(uint64(1)))
	})

	It("should merge overlapping busy time", func() {
		tracer := NewBusyTimeTracer(timeTeller, nil)
		CollectTrace(domain, tracer)

		now = 1
		StartTask("1", "", domain, "req_in", "read", nil)
		now = 3
		StartTask("2", "", domain, "req_in", "read", nil)
		now = 5
		EndTask("1", domain)
		now = 8
		EndTask("2", domain)
		now = 20
		StartTask("3", "", domain, "req_in", "read", nil)
		now = 22
		EndTask("3", domain)

		Expect(tracer.BusyTime()).To(Equal(sim.VTimeInCycle(9)))
	})

	It("should terminate unfinished busy tasks", func() {
		tracer := NewBusyTimeTracer(timeTeller, nil)
		CollectTrace(domain, tracer)

		now = 2
		StartTask("1", "", domain, "req_in", "read", nil)
		tracer.TerminateAllTasks(12)

		Expect(tracer.BusyTime()).To(Equal(sim.VTimeInCycle(10)))
	})

	It("should store tasks into the database", func() {
		db, err := sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())
		db.SetMaxOpenConns(1)
		recorder := datarecording.NewWithDB(db)
		defer recorder.Close()

		tracer := NewDBTracer(timeTeller, recorder)
		CollectTrace(domain, tracer)

		now = 1
		StartTask("1", "", domain, "req_in", "read", nil)
		StartTask("2", "", domain, "req_in", "write", nil)
		AddTaskStep("1", domain, "read-hit")
		now = 3
		EndTask("1", domain)
		tracer.Terminate()

		var count int
		Expect(db.QueryRow("SELECT COUNT(*) FROM trace").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(2))

		var endTime uint64
		Expect(db.QueryRow(
			"SELECT EndTime FROM trace WHERE ID = '1'").Scan(&endTime)).
			To(Succeed())
		Expect(endTime).To(Equal(uint64(3)))

		Expect(db.QueryRow("SELECT COUNT(*) FROM trace_steps").Scan(&count)).
			To(Succeed())
		Expect(count).To(Equal(1))
	})
})
