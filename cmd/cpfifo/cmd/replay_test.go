package cmd

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cpfifo/opcode"
)

func bpStream(n int) []byte {
	var data []byte
	for i := 0; i < n; i++ {
		data = append(data, opcode.TagLoadBP, 0, 0, 0, byte(i))
	}

	return data
}

var _ = Describe("Replay", func() {
	var (
		dir    string
		out    *bytes.Buffer
		errOut *bytes.Buffer
		stream string
	)

	run := func(args ...string) error {
		root := NewRootCommand()
		root.SetOut(out)
		root.SetErr(errOut)
		root.SetArgs(append([]string{"replay"}, args...))

		return root.Execute()
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}

		stream = filepath.Join(dir, "stream.bin")
		Expect(os.WriteFile(stream, bpStream(100), 0o644)).To(Succeed())

		GinkgoT().Setenv("CPFIFO_DUAL_CORE", "")
		Expect(os.Unsetenv("CPFIFO_DUAL_CORE")).To(Succeed())
	})

	It("should decode every command", func() {
		Expect(run(stream, "--chunk", "64")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Replayed 500 bytes"))
		Expect(out.String()).To(ContainSubstring("(single core)"))
		Expect(out.String()).To(MatchRegexp(`bp loads\s+100\n`))
		Expect(out.String()).To(MatchRegexp(`LOAD_BP_REG\s+100\s`))
	})

	It("should replay on two goroutines", func() {
		Expect(run(stream, "--dual-core", "--chunk", "32")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("(dual core)"))
		Expect(out.String()).To(MatchRegexp(`bp loads\s+100\n`))
	})

	It("should take the mode from the environment", func() {
		GinkgoT().Setenv("CPFIFO_DUAL_CORE", "true")

		Expect(run(stream)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("(dual core)"))
	})

	It("should let the flag override the environment", func() {
		GinkgoT().Setenv("CPFIFO_DUAL_CORE", "true")

		Expect(run(stream, "--dual-core=false")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("(single core)"))
	})

	It("should log the commands", func() {
		Expect(run(stream, "--log-commands")).To(Succeed())

		Expect(errOut.String()).To(ContainSubstring("Replay.Decoder, Command, "))
		Expect(errOut.String()).To(ContainSubstring("LOAD_BP_REG"))
	})

	It("should keep a small FIFO from overflowing", func() {
		Expect(run(stream, "--fifo-size", "128", "--chunk", "32",
			"--ticks", "1")).To(Succeed())

		Expect(out.String()).To(MatchRegexp(`bp loads\s+100\n`))
	})

	It("should write a trace database", func() {
		db := filepath.Join(dir, "trace")

		Expect(run(stream, "--trace-db", db)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("trace.sqlite3"))
		Expect(filepath.Join(dir, "trace.sqlite3")).To(BeAnExistingFile())
	})

	It("should fail on a stream that cannot be decoded", func() {
		bad := filepath.Join(dir, "bad.bin")
		Expect(os.WriteFile(bad, append([]byte{0x03}, make([]byte, 63)...),
			0o644)).To(Succeed())

		err := run(bad, "--ticks", "5000")

		Expect(err).To(MatchError(ContainSubstring("stalled")))
	})

	It("should reject a FIFO size that is not a burst multiple", func() {
		Expect(run(stream, "--fifo-size", "100")).NotTo(Succeed())
	})

	It("should fail on a missing file", func() {
		err := run(filepath.Join(dir, "missing.bin"))

		Expect(err).To(MatchError(ContainSubstring("reading the command stream")))
	})
})
