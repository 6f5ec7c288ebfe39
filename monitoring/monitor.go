// Package monitoring turns a running session into a web server so that the
// command FIFO can be inspected and paused from outside.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/monitoring/web"
	"github.com/sarchlab/cpfifo/opcode"
	"github.com/sarchlab/cpfifo/session"
	"github.com/sarchlab/cpfifo/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Engine is the part of the engine that the monitor controls.
type Engine interface {
	sim.TimeTeller
	Pause()
	Continue()
}

// Component is anything that can be looked up by name.
type Component interface {
	Name() string
}

// Buffer is a queue whose fill level is reported.
type Buffer interface {
	Name() string
	Size() int
	Capacity() int
}

// Monitor can turn a session into a server and allows external monitoring
// and controlling of the session.
type Monitor struct {
	engine     Engine
	session    *session.Session
	components []Component
	buffers    []Buffer
	portNumber int

	pauseLock sync.Mutex
	paused    bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that keeps the guest time.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterComponent registers a component to be monitored.
func (m *Monitor) RegisterComponent(c Component) {
	m.components = append(m.components, c)
}

// RegisterBuffer registers a buffer whose level is reported.
func (m *Monitor) RegisterBuffer(b Buffer) {
	m.buffers = append(m.buffers, b)
}

// RegisterSession registers the engine, the components and the buffers of a
// session.
func (m *Monitor) RegisterSession(s *session.Session) {
	m.session = s

	m.RegisterEngine(s.Engine())

	m.RegisterComponent(s.GatherPipe())
	m.RegisterComponent(s.Registers())
	m.RegisterComponent(s.Decoder())
	m.RegisterComponent(s.FIFO())
	m.RegisterComponent(s.FIFO().VideoBuffer())
	m.RegisterComponent(s.Requests())

	m.RegisterBuffer(funcBuffer{
		name:     s.GatherPipe().Name(),
		size:     s.GatherPipe().Count,
		capacity: s.GatherPipe().Capacity,
	})

	vb := s.FIFO().VideoBuffer()
	m.RegisterBuffer(funcBuffer{
		name:     vb.Name(),
		size:     func() int { return int(vb.Size()) },
		capacity: vb.Capacity,
	})

	regs := s.Registers()
	m.RegisterBuffer(funcBuffer{
		name: regs.Name(),
		size: func() int {
			st := regs.State()
			return int(st.RWDistance)
		},
		capacity: func() int {
			st := regs.State()
			return int(st.End-st.Base) + gatherpipe.BurstSize
		},
	})
}

type funcBuffer struct {
	name     string
	size     func() int
	capacity func() int
}

func (b funcBuffer) Name() string  { return b.name }
func (b funcBuffer) Size() int     { return b.size() }
func (b funcBuffer) Capacity() int { return b.capacity() }

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause)
	r.HandleFunc("/api/continue", m.resume)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/buffers", m.listBuffers)
	r.HandleFunc("/api/fifo", m.fifoStatus)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server. It returns the URL of the
// server.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring the command FIFO with %s\n", url)

	handler := m.router()

	go func() {
		err := http.Serve(listener, handler)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Panic(err)
		}
	}()

	return url
}

// OpenBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

// StopServer closes the listener of the server.
func (m *Monitor) StopServer() {
	if m.listener == nil {
		return
	}

	err := m.listener.Close()
	if err != nil {
		log.Printf("closing monitor: %v", err)
	}

	m.listener = nil
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if !m.paused {
		m.engine.Pause()
		m.paused = true
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.paused {
		m.engine.Continue()
		m.paused = false
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.engine.CurrentTime())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type bufferRsp struct {
	Buffer   string `json:"buffer"`
	Level    int    `json:"level"`
	Capacity int    `json:"cap"`
}

func (m *Monitor) listBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.buffersParseParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	sortedBuffers := m.sortAndSelectBuffers(sortMethod, limit, offset)

	rsp := make([]bufferRsp, 0, len(sortedBuffers))
	for _, b := range sortedBuffers {
		rsp = append(rsp, bufferRsp{
			Buffer:   b.Name(),
			Level:    b.Size(),
			Capacity: b.Capacity(),
		})
	}

	writeJSON(w, rsp)
}

func (*Monitor) buffersParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method: %s, allowed values are `level` and `percent`",
			sortMethod)
	}

	limitNumber, err := intParam(r, "limit")
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offsetNumber, err := intParam(r, "offset")
	if err != nil {
		return sortMethod, limitNumber, 0, err
	}

	return sortMethod, limitNumber, offsetNumber, nil
}

func intParam(r *http.Request, name string) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}

	return v, nil
}

func bufferPercent(b Buffer) float64 {
	if b.Capacity() == 0 {
		return 0
	}

	return float64(b.Size()) / float64(b.Capacity())
}

type bufferLevel struct {
	buffer  Buffer
	size    int
	percent float64
}

func (m *Monitor) sortAndSelectBuffers(
	sortMethod string,
	limit, offset int,
) []Buffer {
	levels := make([]bufferLevel, 0, len(m.buffers))
	for _, b := range m.buffers {
		levels = append(levels, bufferLevel{
			buffer:  b,
			size:    b.Size(),
			percent: bufferPercent(b),
		})
	}

	sort.SliceStable(levels, func(i, j int) bool {
		a, b := levels[i], levels[j]

		if sortMethod == "level" {
			if a.size != b.size {
				return a.size > b.size
			}

			return a.percent > b.percent
		}

		if a.percent != b.percent {
			return a.percent > b.percent
		}

		return a.size > b.size
	})

	if offset > len(levels) {
		offset = len(levels)
	}

	end := len(levels)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	sortedBuffers := make([]Buffer, 0, end-offset)
	for _, l := range levels[offset:end] {
		sortedBuffers = append(sortedBuffers, l.buffer)
	}

	return sortedBuffers
}

type fifoRsp struct {
	Now               uint64            `json:"now"`
	DualCore          bool              `json:"dual_core"`
	Registers         cp.FifoState      `json:"registers"`
	Interrupt         bool              `json:"interrupt"`
	VideoBufferLevel  int64             `json:"video_buffer_level"`
	BurstsFetched     uint64            `json:"bursts_fetched"`
	SyncTicks         int64             `json:"sync_ticks"`
	Stalled           bool              `json:"stalled"`
	Syncs             map[string]uint64 `json:"syncs"`
	Decoder           opcode.Stats      `json:"decoder"`
	GatherPipePending int               `json:"gather_pipe_pending"`
}

func (m *Monitor) fifoStatus(w http.ResponseWriter, _ *http.Request) {
	s := m.session
	if s == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "No session registered")

		return
	}

	f := s.FIFO()

	rsp := fifoRsp{
		Now:               uint64(s.Engine().CurrentTime()),
		DualCore:          s.IsDualCore(),
		Registers:         s.Registers().State(),
		Interrupt:         s.Registers().InterruptSet(),
		VideoBufferLevel:  f.VideoBuffer().Size(),
		BurstsFetched:     f.BurstsFetched(),
		SyncTicks:         f.SyncTicks(),
		Stalled:           f.Stalled(),
		Syncs:             make(map[string]uint64),
		Decoder:           s.Stats(),
		GatherPipePending: s.GatherPipe().Count(),
	}

	for r := fifo.SyncReasonOther; r <= fifo.SyncReasonSaveState; r++ {
		rsp.Syncs[r.String()] = f.SyncCount(r)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarStatus, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Status())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
