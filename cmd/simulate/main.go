package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/config"
	"github.com/careloop/provider-availability/internal/db"
)

// The simulator hammers a running api-server with a mixed booking workload
// and reports per-operation latency. Slot and provider IDs come straight
// from Postgres, patient identities are fabricated: the API treats patients
// as external callers, so any UUID works.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ConfirmRatio float64
	ReadRatio    float64
	SlotLimit    int
	PatientPool  int
	PostgresDSN  string
}

type patient struct {
	ID    uuid.UUID
	Name  string
	Email string
}

type DataPool struct {
	Providers []uuid.UUID
	Slots     []uuid.UUID
	Patients  []patient

	mu     sync.RWMutex
	booked []uuid.UUID // slots this run managed to book
}

func (dp *DataPool) AddBooked(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.booked = append(dp.booked, id)
}

func (dp *DataPool) RandomBooked(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.booked) == 0 {
		return uuid.Nil, false
	}
	return dp.booked[rng.Intn(len(dp.booked))], true
}

// reqResult is one measured request. A transport error records as status 0.
type reqResult struct {
	status  int
	latency time.Duration
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(res reqResult) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case res.status >= 200 && res.status < 300:
		atomic.AddInt64(&om.Success, 1)
	case res.status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, res.latency)
	om.mu.Unlock()
}

type latencySummary struct {
	Avg, Min, Max, P50, P95 time.Duration
}

func (om *OperationMetrics) Summary() latencySummary {
	om.mu.Lock()
	defer om.mu.Unlock()

	n := len(om.latencies)
	if n == 0 {
		return latencySummary{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	return latencySummary{
		Avg: sum / time.Duration(n),
		Min: sorted[0],
		Max: sorted[n-1],
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Metrics struct {
	Booking       OperationMetrics
	Cancel        OperationMetrics
	Confirm       OperationMetrics
	ReadSlot      OperationMetrics
	ListSlots     OperationMetrics
	ProviderStats OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	logger.Info().Msg("simulator starting")

	cfg := loadConfig(logger)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("confirm", cfg.ConfirmRatio).
		Float64("read", cfg.ReadRatio).
		Msg("workload mix")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().
		Int("providers", len(dataPool.Providers)).
		Int("slots", len(dataPool.Slots)).
		Int("patients", len(dataPool.Patients)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run(logger)
	sim.PrintReport()
}

func loadConfig(logger zerolog.Logger) SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.40),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.15),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.10),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.35),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 2400),
		PatientPool:  getInt("SIM_PATIENT_POOL", 4000),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM providers WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Providers = append(dataPool.Providers, id)
	}

	// Only slots far enough out that min-advance policies cannot reject them.
	rows, err = pool.Query(ctx, `
		SELECT id FROM availability_slots
		WHERE status = 'available' AND start_at > now() + interval '7 days'
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, id)
	}

	if len(dataPool.Providers) == 0 {
		return nil, fmt.Errorf("no providers loaded, run cmd/seed first")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded, run cmd/seed first")
	}

	gofakeit.Seed(time.Now().UnixNano())
	for i := 0; i < cfg.PatientPool; i++ {
		dataPool.Patients = append(dataPool.Patients, patient{
			ID:    uuid.New(),
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
		})
	}

	return dataPool, nil
}

func (s *Simulator) Run(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		case r < s.config.BookingRatio+s.config.CancelRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		default:
			s.doRead(ctx, rng)
		}
	}
}

// send issues one request against the API and measures it.
func (s *Simulator) send(ctx context.Context, method, path string, payload any) reqResult {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return reqResult{}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	res := reqResult{latency: time.Since(start)}
	if err == nil {
		res.status = resp.StatusCode
		resp.Body.Close()
	}
	return res
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	res := s.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/slots/%s/book", slotID), map[string]string{
		"patient_id":    p.ID.String(),
		"patient_name":  p.Name,
		"patient_email": p.Email,
	})
	if res.status == http.StatusOK {
		s.pool.AddBooked(slotID)
	}
	s.metrics.Booking.Record(res)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	slotID, ok := s.pool.RandomBooked(rng)
	if !ok {
		return
	}

	res := s.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/slots/%s/cancel", slotID), map[string]any{
		"reason": "patient schedule changed",
	})
	s.metrics.Cancel.Record(res)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	slotID, ok := s.pool.RandomBooked(rng)
	if !ok {
		return
	}

	res := s.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/slots/%s/confirm", slotID), nil)
	s.metrics.Confirm.Record(res)
}

// doRead spreads the read share evenly across the three read endpoints.
func (s *Simulator) doRead(ctx context.Context, rng *rand.Rand) {
	switch rng.Intn(3) {
	case 0:
		slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
		res := s.send(ctx, http.MethodGet, "/api/v1/slots/"+slotID.String(), nil)
		s.metrics.ReadSlot.Record(res)
	case 1:
		providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
		res := s.send(ctx, http.MethodGet,
			fmt.Sprintf("/api/v1/providers/%s/slots?status=available&limit=20", providerID), nil)
		s.metrics.ListSlots.Record(res)
	case 2:
		providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
		res := s.send(ctx, http.MethodGet,
			fmt.Sprintf("/api/v1/providers/%s/availabilities/stats", providerID), nil)
		s.metrics.ProviderStats.Record(res)
	}
}

func (s *Simulator) PrintReport() {
	line := strings.Repeat("=", 80)
	fmt.Println("\n" + line)
	fmt.Println("SIMULATION REPORT")
	fmt.Println(line)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Book slot", &s.metrics.Booking)
	printOperationReport("Cancel slot", &s.metrics.Cancel)
	printOperationReport("Confirm slot", &s.metrics.Confirm)
	printOperationReport("Read slot", &s.metrics.ReadSlot)
	printOperationReport("List provider slots", &s.metrics.ListSlots)
	printOperationReport("Provider statistics", &s.metrics.ProviderStats)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)
	lat := om.Summary()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success, total))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict, total))
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, pct(errCount, total))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		lat.Avg.Round(time.Millisecond), lat.Min.Round(time.Millisecond), lat.Max.Round(time.Millisecond),
		lat.P50.Round(time.Millisecond), lat.P95.Round(time.Millisecond))
	fmt.Println()
}

func pct(part, total int64) float64 {
	return float64(part) / float64(total) * 100
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
