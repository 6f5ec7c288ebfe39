package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/session"
	"github.com/sarchlab/cpfifo/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sampleComponent struct {
	name  string
	level int
}

func (c *sampleComponent) Name() string {
	return c.name
}

type sampleBuffer struct {
	name     string
	size     int
	capacity int
}

func (b sampleBuffer) Name() string  { return b.name }
func (b sampleBuffer) Size() int     { return b.size }
func (b sampleBuffer) Capacity() int { return b.capacity }

type sampleEngine struct {
	now       sim.VTimeInCycle
	pauses    int
	continues int
}

func (e *sampleEngine) CurrentTime() sim.VTimeInCycle { return e.now }
func (e *sampleEngine) Pause()                        { e.pauses++ }
func (e *sampleEngine) Continue()                     { e.continues++ }

const (
	monitorFifoBase = 0x10000
	monitorFifoEnd  = monitorFifoBase + 0x1000 - 32
)

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		m.router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
	})

	It("should refuse a low port number", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	Context("with a fake engine", func() {
		var engine *sampleEngine

		BeforeEach(func() {
			engine = &sampleEngine{now: 1234}
			m.RegisterEngine(engine)
		})

		It("should report the current time", func() {
			rec := get("/api/now")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal(`{"now":1234}`))
		})

		It("should pause and continue once", func() {
			Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
			Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
			Expect(engine.pauses).To(Equal(1))

			Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
			Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
			Expect(engine.continues).To(Equal(1))
		})

		It("should not report a FIFO without a session", func() {
			Expect(get("/api/fifo").Code).To(Equal(http.StatusNotFound))
		})
	})

	Context("with components", func() {
		BeforeEach(func() {
			m.RegisterComponent(&sampleComponent{name: "A", level: 1})
			m.RegisterComponent(&sampleComponent{name: "B", level: 2})
		})

		It("should list the components", func() {
			rec := get("/api/list_components")

			var names []string
			Expect(json.Unmarshal(rec.Body.Bytes(), &names)).To(Succeed())
			Expect(names).To(Equal([]string{"A", "B"}))
		})

		It("should return 404 for an unknown component", func() {
			rec := get("/api/component/C")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("should serialize a component", func() {
			rec := get("/api/component/B")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.Len()).To(BeNumerically(">", 0))
		})

		It("should reject a malformed field request", func() {
			rec := get("/api/field/notjson")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("with buffers", func() {
		BeforeEach(func() {
			m.RegisterBuffer(sampleBuffer{name: "Small", size: 2, capacity: 4})
			m.RegisterBuffer(sampleBuffer{name: "Large", size: 10, capacity: 100})
			m.RegisterBuffer(sampleBuffer{name: "Empty", size: 0, capacity: 0})
		})

		names := func(rec *httptest.ResponseRecorder) []string {
			var rsp []bufferRsp
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

			out := make([]string, 0, len(rsp))
			for _, b := range rsp {
				out = append(out, b.Buffer)
			}

			return out
		}

		It("should sort by percent by default", func() {
			rec := get("/api/buffers")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(names(rec)).To(Equal([]string{"Small", "Large", "Empty"}))
		})

		It("should sort by level", func() {
			rec := get("/api/buffers?sort=level")

			Expect(names(rec)).To(Equal([]string{"Large", "Small", "Empty"}))
		})

		It("should page the buffers", func() {
			rec := get("/api/buffers?sort=level&limit=1&offset=1")

			Expect(names(rec)).To(Equal([]string{"Small"}))
		})

		It("should return nothing past the end", func() {
			rec := get("/api/buffers?offset=5")

			Expect(names(rec)).To(BeEmpty())
		})

		It("should reject an unknown sort method", func() {
			Expect(get("/api/buffers?sort=name").Code).
				To(Equal(http.StatusBadRequest))
		})

		It("should reject a negative limit", func() {
			Expect(get("/api/buffers?limit=-1").Code).
				To(Equal(http.StatusBadRequest))
		})
	})

	Context("with a session", func() {
		var s *session.Session

		BeforeEach(func() {
			s = session.MakeBuilder().Build("Session")
			s.SetupFifo(monitorFifoBase, monitorFifoEnd)
			s.Registers().Write16(cp.CtrlRegister, cp.CtrlGPLinkEnable)
			s.Start()

			m.RegisterSession(s)
		})

		AfterEach(func() {
			s.Shutdown()
		})

		It("should register the parts of the session", func() {
			Expect(m.components).To(HaveLen(6))
			Expect(m.buffers).To(HaveLen(3))
		})

		It("should report the FIFO", func() {
			s.WriteCommands(make([]byte, 70))

			rec := get("/api/fifo")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var rsp fifoRsp
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

			Expect(rsp.DualCore).To(BeFalse())
			Expect(rsp.Registers.RWDistance).To(Equal(uint32(64)))
			Expect(rsp.Registers.WritePointer).
				To(Equal(uint32(monitorFifoBase + 64)))
			Expect(rsp.GatherPipePending).To(Equal(6))
			Expect(rsp.Stalled).To(BeFalse())
			Expect(rsp.Syncs).To(HaveKey("Other"))
		})

		It("should report the FIFO level as a buffer", func() {
			s.WriteCommands(make([]byte, 64))

			rec := get("/api/buffers?sort=level&limit=1")

			var rsp []bufferRsp
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
			Expect(rsp).To(Equal([]bufferRsp{{
				Buffer:   "Session.CP",
				Level:    64,
				Capacity: 0x1000,
			}}))
		})
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("Replay", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)
		bar.IncrementFinished(2)

		rec := get("/api/progress")

		var bars []ProgressBarStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("Replay"))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))
		Expect(bars[0].Finished).To(Equal(uint64(5)))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})
})
