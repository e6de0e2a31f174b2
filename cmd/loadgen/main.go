package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type Config struct {
	TargetURL      string
	Records        int
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	CriteriaCount  int
	LayersShare    float64
	OutputPrefix   string
	RequestTimeout time.Duration
	Seed           int64
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.TargetURL, "target", "http://localhost:8090", "Service base URL")
	flag.IntVar(&cfg.Records, "records", 5000, "Synthetic records to upload")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.CriteriaCount, "criteria", 64, "Distinct criteria in pool")
	flag.Float64Var(&cfg.LayersShare, "layers-share", 0.3, "Fraction of reads hitting /layers instead of /visible")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/loadgen", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 = time based)")
	flag.Parse()
	return cfg
}

var (
	centers = []struct {
		name     string
		lat, lng float64
	}{
		{"Nairobi", -1.2864, 36.8172},
		{"Mombasa", -4.0435, 39.6682},
		{"Kisumu", -0.0917, 34.7680},
		{"Eldoret", 0.5143, 35.2698},
		{"Nakuru", -0.3031, 36.0800},
	}
	categories = []string{"Sample Site", "Confirmed Case", "Pending Review", "Field Survey"}
	species    = []string{"Type 1", "Type 2", "Type 3"}
)

// makeDataset renders n synthetic records as a simple CSV batch. Points
// scatter around a handful of hot centers.
func makeDataset(n int, r *rand.Rand) []byte {
	var b bytes.Buffer
	b.WriteString("lat,lng,label,type,species,year")
	for range n {
		c := centers[r.Intn(len(centers))]
		fmt.Fprintf(&b, "\n%.6f,%.6f,%s,%s,%s,%d",
			c.lat+(r.Float64()-0.5)*0.4,
			c.lng+(r.Float64()-0.5)*0.4,
			c.name,
			categories[r.Intn(len(categories))],
			species[r.Intn(len(species))],
			2015+r.Intn(10),
		)
	}
	return b.Bytes()
}

type criteria struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
	Region     string   `json:"region,omitempty"`
	Species    string   `json:"species,omitempty"`
	Year       string   `json:"year,omitempty"`
}

// makeCriteria builds a pool mixing broad and narrow selections.
func makeCriteria(count int, r *rand.Rand) []criteria {
	out := make([]criteria, 0, count)
	for len(out) < count {
		var c criteria
		if r.Intn(2) == 0 {
			c.Region = centers[r.Intn(len(centers))].name
		}
		if r.Intn(3) == 0 {
			c.Species = species[r.Intn(len(species))]
		}
		if r.Intn(4) == 0 {
			c.Year = fmt.Sprint(2015 + r.Intn(10))
		}
		if r.Intn(5) == 0 {
			c.Text = strings.ToLower(centers[r.Intn(len(centers))].name[:3])
		}
		c.Categories = append(c.Categories, categories[:1+r.Intn(len(categories))]...)
		out = append(out, c)
	}
	return out
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	Op        string
	Criteria  int
}

type summary struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DurationSec   float64   `json:"duration_sec"`
	Records       int       `json:"records"`
	TotalRequests int64     `json:"total_requests"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	CriteriaPool  int       `json:"criteria"`
	TargetURL     string    `json:"target"`
}

type aggregatedResult struct {
	total   int64
	success int64
	errors  int64
	latMs   []float64
}

type client struct {
	http *http.Client
	base string
}

func (c *client) do(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.base, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// newSession creates one session per worker and uploads the dataset to it.
func (c *client) newSession(ctx context.Context, dataset []byte) (string, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/sessions", "", nil)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("create session: status=%d", status)
	}
	var s struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &s); err != nil || s.ID == "" {
		return "", fmt.Errorf("create session: bad body %q", body)
	}
	status, body, err = c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(s.ID)+"/upload", "text/csv", dataset)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("upload: status=%d body=%s", status, body)
	}
	return s.ID, nil
}

func main() {
	cfg := loadConfig()
	if cfg.Concurrency <= 0 || cfg.CriteriaCount <= 0 {
		log.Fatalf("concurrency and criteria must be positive")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Fatalf("mkdir results: %v", err)
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	dataset := makeDataset(cfg.Records, r)
	pool := makeCriteria(cfg.CriteriaCount, r)
	bodies := make([][]byte, len(pool))
	for i, c := range pool {
		b, err := json.Marshal(c)
		if err != nil {
			log.Fatalf("encode criteria: %v", err)
		}
		bodies[i] = b
	}
	imax := uint64(len(pool)) - 1

	c := &client{
		base: cfg.TargetURL,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:          1024,
				MaxIdleConnsPerHost:   256,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: cfg.RequestTimeout,
		},
	}

	setupCtx, setupCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout*time.Duration(cfg.Concurrency))
	sessions := make([]string, cfg.Concurrency)
	for i := range sessions {
		id, err := c.newSession(setupCtx, dataset)
		if err != nil {
			setupCancel()
			log.Fatalf("setup worker %d: %v", i, err)
		}
		sessions[i] = id
	}
	setupCancel()

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer func() { _ = csvFile.Close() }()
	csvWriter := csv.NewWriter(csvFile)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samplesChan := make(chan sample, 4096)
	resultsChan := make(chan aggregatedResult, 1)
	go func() {
		_ = csvWriter.Write([]string{"timestamp", "latency_ms", "status", "error", "op", "criteria_idx"})
		var agg aggregatedResult
		agg.latMs = make([]float64, 0, 1<<16)
		for s := range samplesChan {
			agg.total++
			ms := float64(s.Latency.Microseconds()) / 1000.0
			if s.ErrorMsg == "" {
				agg.success++
				agg.latMs = append(agg.latMs, ms)
			} else {
				agg.errors++
			}
			_ = csvWriter.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				fmt.Sprintf("%.3f", ms),
				fmt.Sprint(s.Status),
				s.ErrorMsg,
				s.Op,
				fmt.Sprint(s.Criteria),
			})
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
		resultsChan <- agg
	}()

	startTime := time.Now()
	log.Printf("loadgen start target=%s records=%d dur=%s conc=%d zipf(s=%.2f,v=%.2f) criteria=%d",
		cfg.TargetURL, cfg.Records, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, cfg.CriteriaCount)

	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for workerID := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			rWorker := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipf := rand.NewZipf(rWorker, cfg.ZipfS, cfg.ZipfV, imax)
			base := "/sessions/" + url.PathEscape(sessions[id])

			for ctx.Err() == nil {
				idx := int(zipf.Uint64())
				s := sample{Timestamp: time.Now(), Criteria: idx, Op: "visible"}

				status, _, err := c.do(ctx, http.MethodPut, base+"/criteria", "application/json", bodies[idx])
				if err == nil && status == http.StatusOK {
					path := base + "/visible"
					if rWorker.Float64() < cfg.LayersShare {
						s.Op = "layers"
						path = fmt.Sprintf("%s/layers?zoom=%d", base, 4+rWorker.Intn(12))
					}
					status, _, err = c.do(ctx, http.MethodGet, path, "", nil)
				}
				s.Latency = time.Since(s.Timestamp)
				s.Status = status
				switch {
				case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
					return
				case err != nil:
					s.ErrorMsg = err.Error()
				case status != http.StatusOK:
					s.ErrorMsg = fmt.Sprintf("status=%d", status)
				}

				select {
				case samplesChan <- s:
				case <-ctx.Done():
					return
				}
			}
		}(workerID)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samplesChan)
	}()

	agg := <-resultsChan
	endTime := time.Now()
	elapsed := endTime.Sub(startTime).Seconds()

	sort.Float64s(agg.latMs)
	sum := summary{
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		DurationSec:   elapsed,
		Records:       cfg.Records,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		CriteriaPool:  cfg.CriteriaCount,
		TargetURL:     cfg.TargetURL,
	}

	if out, err := json.MarshalIndent(sum, "", "  "); err == nil {
		if err := os.WriteFile(filepath.Clean(jsonPath), out, 0o600); err != nil {
			log.Printf("write summary: %v", err)
		}
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		agg.total, agg.success, agg.errors, sum.ThroughputRPS, sum.P50Ms, sum.P95Ms, sum.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
}

func percentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sortedValues[0]
	}
	if p >= 100 {
		return sortedValues[len(sortedValues)-1]
	}
	k := (p / 100.0) * float64(len(sortedValues)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sortedValues)-1 {
		return sortedValues[len(sortedValues)-1]
	}
	d := k - f
	return sortedValues[i]*(1-d) + sortedValues[i+1]*d
}
