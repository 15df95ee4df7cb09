package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Нагрузочный генератор для HTTP API: создаёт pending-резервации пулом
// воркеров и печатает латентность по перцентилям. Предназначен для стенда
// с mock-шлюзом, на проде ничего оплачивать не пытается.

type config struct {
	baseURL  string
	workers  int
	requests int
	timeout  time.Duration
}

type result struct {
	latency time.Duration
	status  int
	err     error
}

func parseConfig() (config, error) {
	var cfg config
	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "boxoffice API base URL")
	flag.IntVar(&cfg.workers, "workers", 8, "number of concurrent workers")
	flag.IntVar(&cfg.requests, "requests", 200, "total number of reservations to create")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	if cfg.baseURL == "" {
		return cfg, fmt.Errorf("base-url is required")
	}
	if cfg.workers <= 0 {
		return cfg, fmt.Errorf("workers must be positive")
	}
	if cfg.requests <= 0 {
		return cfg, fmt.Errorf("requests must be positive")
	}
	return cfg, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig()
	if err != nil {
		log.WithError(err).Error("invalid flags")
		os.Exit(2)
	}

	client := &http.Client{Timeout: cfg.timeout}
	jobs := make(chan int)
	results := make(chan result, cfg.requests)

	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for n := range jobs {
				results <- createReservation(client, cfg.baseURL, rng, n)
			}
		}(time.Now().UnixNano() + int64(w))
	}

	started := time.Now()
	go func() {
		for n := 0; n < cfg.requests; n++ {
			jobs <- n
		}
		close(jobs)
	}()

	wg.Wait()
	close(results)

	report(cfg, started, collect(results))
}

func createReservation(client *http.Client, baseURL string, rng *rand.Rand, n int) result {
	gender := "male"
	if rng.Intn(2) == 1 {
		gender = "female"
	}
	body, _ := json.Marshal(map[string]any{
		"kind":     "general",
		"gender":   gender,
		"quantity": 1 + rng.Intn(4),
		"customer": map[string]any{
			"full_name": fmt.Sprintf("Load Tester %d", n),
			"dni":       fmt.Sprintf("%08d", rng.Intn(100000000)),
		},
	})

	begin := time.Now()
	resp, err := client.Post(baseURL+"/api/v1/reservations", "application/json", bytes.NewReader(body))
	elapsed := time.Since(begin)
	if err != nil {
		return result{latency: elapsed, err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return result{latency: elapsed, status: resp.StatusCode}
}

type stats struct {
	latencies []time.Duration
	created   int
	conflicts int
	failures  int
}

func collect(results <-chan result) stats {
	var s stats
	for r := range results {
		s.latencies = append(s.latencies, r.latency)
		switch {
		case r.err != nil:
			s.failures++
		case r.status == http.StatusCreated:
			s.created++
		case r.status == http.StatusConflict:
			s.conflicts++
		default:
			s.failures++
		}
	}
	sort.Slice(s.latencies, func(i, j int) bool { return s.latencies[i] < s.latencies[j] })
	return s
}

// percentile возвращает значение перцентиля p из отсортированного среза.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func report(cfg config, started time.Time, s stats) {
	elapsed := time.Since(started)
	rps := float64(len(s.latencies)) / elapsed.Seconds()

	fmt.Printf("requests=%d created=%d conflicts=%d failures=%d\n", len(s.latencies), s.created, s.conflicts, s.failures)
	fmt.Printf("elapsed=%s rps=%.1f\n", elapsed.Round(time.Millisecond), rps)
	fmt.Printf("latency p50=%s p90=%s p99=%s max=%s\n",
		percentile(s.latencies, 0.50).Round(time.Microsecond),
		percentile(s.latencies, 0.90).Round(time.Microsecond),
		percentile(s.latencies, 0.99).Round(time.Microsecond),
		percentile(s.latencies, 1.0).Round(time.Microsecond),
	)

	if s.failures > 0 && s.failures == len(s.latencies) {
		log.WithField("base_url", cfg.baseURL).Error("all requests failed, is the server running?")
		os.Exit(1)
	}
}
