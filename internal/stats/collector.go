package stats

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// Report holds the samples and stage timings of one run.
type Report struct {
	Start   time.Time
	End     time.Time
	Samples []Sample
	Stages  []Stage
	Summary Summary
}

type Sample struct {
	Elapsed      time.Duration
	HeapAlloc    uint64
	Sys          uint64
	ProcessRSS   uint64
	CPUPercent   float64
	NumGoroutine int
	NumGC        uint32
}

// Stage is a named step of a run, e.g. "load regions" or "classify".
type Stage struct {
	Name     string
	Elapsed  time.Duration
	HeapSeen uint64
}

type Summary struct {
	PeakHeapAlloc  uint64
	PeakSys        uint64
	PeakProcessRSS uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	GCCycles       uint32
}

// Collector samples process memory and CPU on an interval until stopped.
type Collector struct {
	mu       sync.Mutex
	report   Report
	interval time.Duration
	proc     *process.Process

	lastStage time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		interval: interval,
		proc:     proc,
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.report.Start = time.Now()
	c.lastStage = c.report.Start

	go c.collect(ctx)
}

func (c *Collector) collect(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ctx.Done():
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:      time.Since(c.report.Start),
		HeapAlloc:    mem.HeapAlloc,
		Sys:          mem.Sys,
		NumGoroutine: runtime.NumGoroutine(),
		NumGC:        mem.NumGC,
	}
	if info, err := c.proc.MemoryInfo(); err == nil && info != nil {
		s.ProcessRSS = info.RSS
	}
	if cpu, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	c.mu.Lock()
	c.report.Samples = append(c.report.Samples, s)
	c.mu.Unlock()
}

// Mark closes the current stage under name.
func (c *Collector) Mark(name string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	c.mu.Lock()
	c.report.Stages = append(c.report.Stages, Stage{
		Name:     name,
		Elapsed:  now.Sub(c.lastStage),
		HeapSeen: mem.HeapAlloc,
	})
	c.lastStage = now
	c.mu.Unlock()
}

// Stop ends sampling and returns the final report.
func (c *Collector) Stop() Report {
	c.cancel()
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.End = time.Now()
	c.report.Summary = summarize(c.report.Samples)
	return c.report
}

func summarize(samples []Sample) Summary {
	var sum Summary
	if len(samples) == 0 {
		return sum
	}

	var totalCPU float64
	for _, s := range samples {
		sum.PeakHeapAlloc = max(sum.PeakHeapAlloc, s.HeapAlloc)
		sum.PeakSys = max(sum.PeakSys, s.Sys)
		sum.PeakProcessRSS = max(sum.PeakProcessRSS, s.ProcessRSS)
		sum.PeakCPUPercent = max(sum.PeakCPUPercent, s.CPUPercent)
		sum.PeakGoroutines = max(sum.PeakGoroutines, s.NumGoroutine)
		sum.GCCycles = max(sum.GCCycles, s.NumGC)
		totalCPU += s.CPUPercent
	}
	sum.AvgCPUPercent = totalCPU / float64(len(samples))
	return sum
}

func (r Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// WriteTo writes a human readable report.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}

	fmt.Fprintf(cw, "RUN STATISTICS\n")
	fmt.Fprintf(cw, "  Started:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(cw, "  Duration:        %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(cw, "  Samples:         %d\n\n", len(r.Samples))

	fmt.Fprintf(cw, "STAGES\n")
	for _, s := range r.Stages {
		fmt.Fprintf(cw, "  %-20s %12s  heap %s\n", s.Name, s.Elapsed.Round(time.Microsecond), humanize.IBytes(s.HeapSeen))
	}

	fmt.Fprintf(cw, "\nPEAKS\n")
	fmt.Fprintf(cw, "  Heap allocated:  %s\n", humanize.IBytes(r.Summary.PeakHeapAlloc))
	fmt.Fprintf(cw, "  System memory:   %s\n", humanize.IBytes(r.Summary.PeakSys))
	fmt.Fprintf(cw, "  Process RSS:     %s\n", humanize.IBytes(r.Summary.PeakProcessRSS))
	fmt.Fprintf(cw, "  CPU:             %.2f%% (avg %.2f%%)\n", r.Summary.PeakCPUPercent, r.Summary.AvgCPUPercent)
	fmt.Fprintf(cw, "  Goroutines:      %d\n", r.Summary.PeakGoroutines)
	fmt.Fprintf(cw, "  GC cycles:       %d\n", r.Summary.GCCycles)

	return cw.n, cw.err
}

// SaveToFile writes the report to filename.
func (r Report) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	if _, err := r.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return f.Close()
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.err = err
	return n, err
}
