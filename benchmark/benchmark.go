// Package benchmark - Throughput and latency measurement for the detection pipeline.
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-nudenet/detector"
)

// Detector is the part of *detector.Detector a benchmark drives.
type Detector interface {
	DetectBytes(ctx context.Context, data []byte) (detector.Result, error)
}

// Scenario describes one benchmark run.
type Scenario struct {
	Name string `json:"name"`
	// Iterations is the number of measured detections.
	Iterations int `json:"iterations"`
	// WarmupRuns are detections run before measuring; their errors are ignored.
	WarmupRuns int `json:"warmup_runs"`
	// Concurrency is the number of goroutines issuing detections.
	Concurrency int `json:"concurrency"`
}

// PerformanceMetrics captures one scenario's results.
type PerformanceMetrics struct {
	Scenario        Scenario      `json:"scenario"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalDuration   time.Duration `json:"total_duration"`
	MeanLatency     time.Duration `json:"mean_latency"`
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	FramesPerSecond float64       `json:"frames_per_second"`
	MemoryStats     MemoryMetrics `json:"memory_stats"`
	DetectionCount  int           `json:"detection_count"`
	NSFWCount       int           `json:"nsfw_count"`
	ErrorRate       float64       `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// Suite runs scenarios over a fixed set of encoded images.
type Suite struct {
	detector Detector
	images   [][]byte
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	results []PerformanceMetrics
}

// NewSuite creates a suite.
//
// Arguments:
//   - d: The detector under test; it must already be initialized.
//   - images: Encoded images, cycled through in order.
//   - logger: Receives one line per completed scenario. Nil disables logging.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(d Detector, images [][]byte, logger *zap.SugaredLogger) *Suite {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Suite{detector: d, images: images, logger: logger}
}

// RunScenario executes a single scenario.
//
// Arguments:
//   - ctx: Cancels the run between detections.
//   - scenario: The iteration, warm-up and concurrency settings.
//
// Returns:
//   - *PerformanceMetrics: The scenario results, also retained for Results and Save.
//   - error: An error if there are no images, the scenario is invalid, or ctx is cancelled.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if len(s.images) == 0 {
		return nil, errors.New("benchmark needs at least one image")
	}
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %q needs a positive iteration count", scenario.Name)
	}
	workers := max(1, scenario.Concurrency)

	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = s.detector.DetectBytes(ctx, s.images[i%len(s.images)])
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	latencies := make([]time.Duration, scenario.Iterations)
	failed := make([]bool, scenario.Iterations)
	boxes := make([]int, scenario.Iterations)
	nsfw := make([]bool, scenario.Iterations)

	next := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(next)
		for i := 0; i < scenario.Iterations; i++ {
			select {
			case next <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	start := time.Now()
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range next {
				t := time.Now()
				res, err := s.detector.DetectBytes(gctx, s.images[i%len(s.images)])
				latencies[i] = time.Since(t)
				if err != nil {
					failed[i] = true
					continue
				}
				boxes[i] = len(res.Boxes)
				nsfw[i] = res.NSFW
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "scenario %q interrupted", scenario.Name)
	}
	total := time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	m := &PerformanceMetrics{
		Scenario:        scenario,
		Timestamp:       start,
		TotalDuration:   total,
		FramesPerSecond: float64(scenario.Iterations) / total.Seconds(),
		MemoryStats: MemoryMetrics{
			AllocBytes:      endMem.Alloc,
			TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
			SysBytes:        endMem.Sys,
			NumGC:           endMem.NumGC - startMem.NumGC,
			HeapAllocBytes:  endMem.HeapAlloc,
		},
	}

	errCount := 0
	for i := range latencies {
		if failed[i] {
			errCount++
			continue
		}
		m.DetectionCount += boxes[i]
		if nsfw[i] {
			m.NSFWCount++
		}
	}
	m.ErrorRate = float64(errCount) / float64(scenario.Iterations)
	m.MeanLatency, m.P50Latency, m.P95Latency, m.MaxLatency = summarize(latencies)

	s.mu.Lock()
	s.results = append(s.results, *m)
	s.mu.Unlock()

	s.logger.Infow("scenario completed",
		"scenario", scenario.Name,
		"fps", fmt.Sprintf("%.2f", m.FramesPerSecond),
		"p50", m.P50Latency,
		"p95", m.P95Latency,
		"error_rate", m.ErrorRate,
	)
	return m, nil
}

// summarize returns the mean, median, 95th percentile and maximum of durations.
func summarize(durations []time.Duration) (mean, p50, p95, maxD time.Duration) {
	if len(durations) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	n := len(sorted)
	return sum / time.Duration(n), sorted[(n-1)*50/100], sorted[(n-1)*95/100], sorted[n-1]
}

// Results returns every completed scenario.
func (s *Suite) Results() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}

// Save writes the results as JSON and a CSV summary into dir.
//
// Returns:
//   - string: The JSON file path.
//   - string: The CSV file path.
//   - error: An error if dir or either file cannot be written.
func (s *Suite) Save(dir string) (string, string, error) {
	results := s.Results()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(dir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(dir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}
	return resultsFile, summaryFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	header := "Scenario,Iterations,Concurrency,FPS,Total_Duration_ms,P50_ms,P95_ms,Alloc_MB,Detections,NSFW,Error_Rate\n"
	if _, err := file.WriteString(header); err != nil {
		return err
	}

	for _, r := range results {
		line := fmt.Sprintf("%s,%d,%d,%.2f,%.2f,%.3f,%.3f,%.2f,%d,%d,%.4f\n",
			r.Scenario.Name,
			r.Scenario.Iterations,
			max(1, r.Scenario.Concurrency),
			r.FramesPerSecond,
			float64(r.TotalDuration.Nanoseconds())/1e6,
			float64(r.P50Latency.Nanoseconds())/1e6,
			float64(r.P95Latency.Nanoseconds())/1e6,
			float64(r.MemoryStats.AllocBytes)/(1024*1024),
			r.DetectionCount,
			r.NSFWCount,
			r.ErrorRate,
		)
		if _, err := file.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}
