package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cpfifo/cp"
	"github.com/sarchlab/cpfifo/fifo"
	"github.com/sarchlab/cpfifo/gatherpipe"
	"github.com/sarchlab/cpfifo/monitoring"
	"github.com/sarchlab/cpfifo/opcode"
	"github.com/sarchlab/cpfifo/session"
	"github.com/sarchlab/cpfifo/sim"
	"github.com/sarchlab/cpfifo/tracing"
)

const replayFifoBase = 0x00200000

type replayOptions struct {
	dualCore      bool
	syncGPU       bool
	traceDB       string
	monitor       bool
	monitorPort   int
	openBrowser   bool
	logCommands   bool
	fifoSize      uint32
	chunkSize     int
	ticksPerChunk uint64
}

func newReplayCommand() *cobra.Command {
	opts := &replayOptions{}

	replayCmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Feed a raw command stream through the gather pipe",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.applyEnv(cmd)
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading the command stream: %w", err)
			}

			return runReplay(cmd.OutOrStdout(), cmd.ErrOrStderr(), data, opts)
		},
	}

	flags := replayCmd.Flags()
	flags.BoolVar(&opts.dualCore, "dual-core", false,
		"run the GPU on its own goroutine (env CPFIFO_DUAL_CORE)")
	flags.BoolVar(&opts.syncGPU, "sync-gpu", false,
		"keep a dual-core GPU within the sync distances (env CPFIFO_SYNC_GPU)")
	flags.StringVar(&opts.traceDB, "trace-db", "",
		"write a trace to this SQLite database (env CPFIFO_TRACE_DB)")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"serve the monitoring page while replaying")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"port of the monitoring page, random if 0")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"open the monitoring page in a browser")
	flags.BoolVar(&opts.logCommands, "log-commands", false,
		"print every decoded command")
	flags.Uint32Var(&opts.fifoSize, "fifo-size", 0x10000,
		"size of the FIFO in bytes")
	flags.IntVar(&opts.chunkSize, "chunk", 1024,
		"bytes written to the gather pipe between time steps")
	flags.Uint64Var(&opts.ticksPerChunk, "ticks", fifo.TimeSlot,
		"guest CPU ticks advanced after each chunk")

	return replayCmd
}

func (o *replayOptions) applyEnv(cmd *cobra.Command) {
	flags := cmd.Flags()

	if !flags.Changed("dual-core") {
		o.dualCore = envBool("CPFIFO_DUAL_CORE", o.dualCore)
	}

	if !flags.Changed("sync-gpu") {
		o.syncGPU = envBool("CPFIFO_SYNC_GPU", o.syncGPU)
	}

	if !flags.Changed("trace-db") {
		o.traceDB = envString("CPFIFO_TRACE_DB", o.traceDB)
	}
}

func (o *replayOptions) validate() error {
	if o.fifoSize < 2*gatherpipe.BurstSize ||
		o.fifoSize%gatherpipe.BurstSize != 0 {
		return fmt.Errorf("fifo size %d must be a multiple of %d and hold "+
			"at least two bursts", o.fifoSize, gatherpipe.BurstSize)
	}

	if o.chunkSize <= 0 {
		return fmt.Errorf("chunk size %d must be positive", o.chunkSize)
	}

	if o.monitorPort < 0 {
		return fmt.Errorf("monitor port %d must not be negative", o.monitorPort)
	}

	return nil
}

func runReplay(
	out, logOut io.Writer,
	data []byte,
	opts *replayOptions,
) error {
	counter := tracing.NewCountingTracer(func(t tracing.Task) bool {
		return t.Kind == tracing.KindCommand
	})

	builder := session.MakeBuilder().
		WithDualCore(opts.dualCore).
		WithSyncGPU(opts.syncGPU).
		WithFatalHandler(func(msg string) { log.Print(msg) }).
		WithTracer(counter)

	var dbTracer *tracing.DBTracer
	if opts.traceDB != "" {
		writer := tracing.NewSQLiteTraceWriter(opts.traceDB)
		if err := writer.Init(); err != nil {
			return fmt.Errorf("creating the trace database: %w", err)
		}

		dbTracer = tracing.NewDBTracer(writer)
		builder = builder.WithTracer(dbTracer)

		fmt.Fprintf(out, "Tracing to %s\n", writer.FileName())
	}

	s := builder.Build("Replay")

	if opts.logCommands {
		s.Decoder().AcceptHook(sim.NewEventLogger(
			log.New(logOut, "", 0), s.Engine(), opcode.HookPosCommand))
	}
	s.SetupFifo(replayFifoBase,
		replayFifoBase+opts.fifoSize-gatherpipe.BurstSize)
	s.Registers().Write16(cp.CtrlRegister,
		cp.CtrlGPReadEnable|cp.CtrlGPLinkEnable)
	s.Start()

	var bar *monitoring.ProgressBar
	if opts.monitor {
		m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
		m.RegisterSession(s)

		url := m.StartServer()
		defer m.StopServer()

		if opts.openBrowser {
			if err := m.OpenBrowser(url); err != nil {
				log.Printf("cannot open the browser: %v", err)
			}
		}

		bar = m.CreateProgressBar("Replay", uint64(len(data)))
		defer m.CompleteProgressBar(bar)
	}

	err := feed(s, data, opts, bar)

	s.Flush()
	s.SyncGPU()
	s.Shutdown()

	if dbTracer != nil {
		dbTracer.Terminate()
	}

	if err != nil {
		return err
	}

	report(out, s, len(data), counter)

	return nil
}

// feed writes the stream chunk by chunk. When the FIFO is more than half
// full, the GPU is made to catch up before more is written.
func feed(
	s *session.Session,
	data []byte,
	opts *replayOptions,
	bar *monitoring.ProgressBar,
) error {
	for off := 0; off < len(data); off += opts.chunkSize {
		end := min(off+opts.chunkSize, len(data))
		chunk := data[off:end]

		if s.Registers().State().RWDistance+uint32(len(chunk)) >
			opts.fifoSize/2 {
			s.SyncGPU()
		}

		s.WriteCommands(chunk)

		if err := s.Advance(opts.ticksPerChunk); err != nil {
			return fmt.Errorf("advancing time: %w", err)
		}

		if s.FIFO().Stalled() {
			return fmt.Errorf("the GPU stalled after %d bytes", end)
		}

		if bar != nil {
			bar.IncrementFinished(uint64(len(chunk)))
		}
	}

	return nil
}

func report(
	out io.Writer,
	s *session.Session,
	size int,
	counter *tracing.CountingTracer,
) {
	stats := s.Stats()

	mode := "single core"
	if s.IsDualCore() {
		mode = "dual core"
	}

	fmt.Fprintf(out, "Replayed %d bytes in %d ticks (%s)\n",
		size, s.Engine().CurrentTime(), mode)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "commands\t%d\n", stats.Commands)
	fmt.Fprintf(w, "bp loads\t%d\n", stats.BPLoads)
	fmt.Fprintf(w, "cp loads\t%d\n", stats.CPLoads)
	fmt.Fprintf(w, "xf loads\t%d\n", stats.XFLoads)
	fmt.Fprintf(w, "indexed loads\t%d\n", stats.IndexedLoads)
	fmt.Fprintf(w, "display lists\t%d\n", stats.DisplayLists)
	fmt.Fprintf(w, "primitives\t%d\n", stats.Primitives)
	fmt.Fprintf(w, "vertices\t%d\n", stats.Vertices)
	fmt.Fprintf(w, "bursts fetched\t%d\n", s.FIFO().BurstsFetched())

	for r := fifo.SyncReasonOther; r <= fifo.SyncReasonSaveState; r++ {
		if n := s.FIFO().SyncCount(r); n > 0 {
			fmt.Fprintf(w, "syncs (%s)\t%d\n", r, n)
		}
	}

	w.Flush()

	counts := counter.Counts()
	if len(counts) == 0 {
		return
	}

	fmt.Fprintln(out)

	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "command\tcount\tcycles")

	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\t%d\n", c.What, c.Count, c.TotalTime)
	}

	w.Flush()
}
