package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/config"
	"github.com/hackgods/mentor-appointments/internal/db"
	"github.com/hackgods/mentor-appointments/internal/identity"
	"github.com/hackgods/mentor-appointments/internal/logger"
)

type SimConfig struct {
	APIBaseURL  string
	Rounds      int
	Contenders  int // mentors racing to accept each emergency
	Bookings    int // regular bookings pushed through accept and complete
	StudentPool int
	MentorPool  int
}

type participant struct {
	ID    uuid.UUID
	Token string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	CreateEmergency OperationMetrics
	AcceptEmergency OperationMetrics
	Book            OperationMetrics
	UpdateStatus    OperationMetrics
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      *zap.Logger
	students []participant
	mentors  []participant
	metrics  Metrics

	// rounds where the number of winning accepts was not exactly one
	violations int64
}

func main() {
	base, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(base.Env)
	defer func() { _ = log.Sync() }()

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:      getInt("SIM_ROUNDS", 50),
		Contenders:  getInt("SIM_CONTENDERS", 8),
		Bookings:    getInt("SIM_BOOKINGS", 50),
		StudentPool: getInt("SIM_STUDENT_LIMIT", 200),
		MentorPool:  getInt("SIM_MENTOR_LIMIT", 25),
	}
	if cfg.Contenders < 2 {
		log.Fatal("SIM_CONTENDERS must be at least 2")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, base.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	dir := identity.NewPgDirectory(pool)
	issuer := identity.NewTokenIssuer(base.JWTSecret, base.TokenTTL)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	if sim.students, err = loadParticipants(ctx, dir, issuer, identity.RoleStudent, cfg.StudentPool); err != nil {
		log.Fatal("load students", zap.Error(err))
	}
	if sim.mentors, err = loadParticipants(ctx, dir, issuer, identity.RoleMentor, cfg.MentorPool); err != nil {
		log.Fatal("load mentors", zap.Error(err))
	}
	if len(sim.students) == 0 || len(sim.mentors) < cfg.Contenders {
		log.Fatal("not enough seeded users, run cmd/seed first",
			zap.Int("students", len(sim.students)), zap.Int("mentors", len(sim.mentors)))
	}

	log.Info("simulation starting",
		zap.Int("rounds", cfg.Rounds),
		zap.Int("contenders", cfg.Contenders),
		zap.Int("bookings", cfg.Bookings),
	)

	runCtx := context.Background()
	sim.RunEmergencyRace(runCtx)
	sim.RunBookings(runCtx)
	sim.PrintReport()

	if atomic.LoadInt64(&sim.violations) > 0 {
		os.Exit(1)
	}
}

func loadParticipants(ctx context.Context, dir *identity.PgDirectory, issuer *identity.TokenIssuer, role identity.Role, limit int) ([]participant, error) {
	users, err := dir.ListByRole(ctx, role, limit)
	if err != nil {
		return nil, err
	}
	out := make([]participant, 0, len(users))
	for _, u := range users {
		token, err := issuer.Issue(u.ID, u.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, participant{ID: u.ID, Token: token})
	}
	return out, nil
}

// RunEmergencyRace creates one emergency per round and lets several mentors
// accept it at the same instant. Exactly one of them must win.
func (s *Simulator) RunEmergencyRace(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for round := 0; round < s.config.Rounds; round++ {
		student := s.students[rng.Intn(len(s.students))]

		var created struct {
			ID uuid.UUID `json:"id"`
		}
		status, err := s.call(ctx, &s.metrics.CreateEmergency, student, http.MethodPost, "/emergency-appointments",
			map[string]string{"notes": fmt.Sprintf("simulated emergency #%d", round)}, &created)
		if err != nil || status != http.StatusCreated {
			s.log.Warn("create emergency failed", zap.Int("status", status), zap.Error(err))
			continue
		}

		contenders := rng.Perm(len(s.mentors))[:s.config.Contenders]
		start := make(chan struct{})
		var (
			wg      sync.WaitGroup
			winners int64
		)
		for _, idx := range contenders {
			mentor := s.mentors[idx]
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				status, err := s.call(ctx, &s.metrics.AcceptEmergency, mentor, http.MethodPut,
					"/emergency-appointments/"+created.ID.String()+"/accept", nil, nil)
				if err == nil && status == http.StatusOK {
					atomic.AddInt64(&winners, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if winners != 1 {
			atomic.AddInt64(&s.violations, 1)
			s.log.Error("emergency accept race produced wrong number of winners",
				zap.String("appointment_id", created.ID.String()), zap.Int64("winners", winners))
		}
	}
}

// RunBookings drives regular appointments through accept then complete.
func (s *Simulator) RunBookings(ctx context.Context) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + 1))
	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")

	for i := 0; i < s.config.Bookings; i++ {
		student := s.students[rng.Intn(len(s.students))]
		mentor := s.mentors[rng.Intn(len(s.mentors))]

		var booked struct {
			ID uuid.UUID `json:"id"`
		}
		status, err := s.call(ctx, &s.metrics.Book, student, http.MethodPost, "/appointments", map[string]string{
			"mentorId": mentor.ID.String(),
			"date":     date,
			"time":     fmt.Sprintf("%d:%02d", 9+rng.Intn(8), rng.Intn(4)*15),
		}, &booked)
		if err != nil || status != http.StatusCreated {
			continue
		}

		path := "/appointments/" + booked.ID.String() + "/status"
		if _, err := s.call(ctx, &s.metrics.UpdateStatus, mentor, http.MethodPut, path,
			map[string]string{"status": "Accepted"}, nil); err != nil {
			continue
		}
		_, _ = s.call(ctx, &s.metrics.UpdateStatus, mentor, http.MethodPut, path,
			map[string]string{"status": "Completed", "mentorNote": "simulated session"}, nil)
	}
}

func (s *Simulator) call(ctx context.Context, om *OperationMetrics, who participant, method, path string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+who.Token)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		om.Record(time.Since(start), 0)
		return 0, err
	}
	defer resp.Body.Close()
	om.Record(time.Since(start), resp.StatusCode)

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Emergency rounds: %d  contenders per round: %d\n", s.config.Rounds, s.config.Contenders)
	fmt.Printf("Single-winner violations: %d\n\n", atomic.LoadInt64(&s.violations))

	printOperationReport("Create emergency", &s.metrics.CreateEmergency)
	printOperationReport("Accept emergency", &s.metrics.AcceptEmergency)
	printOperationReport("Book regular", &s.metrics.Book)
	printOperationReport("Update status", &s.metrics.UpdateStatus)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
