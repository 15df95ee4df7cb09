// Package health отдаёт состояние процесса оркестратору.
// Один Handler обслуживает и подробный /healthz, и бинарный /readyz.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status — агрегируемое состояние компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// rank задаёт порядок ухудшения: итоговый статус ответа равен
// худшему статусу среди всех проверок.
func rank(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

// Check — результат одной проверки компонента.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Checker выполняет одну проверку. Реализации не должны блокироваться
// надолго: проверки запускаются синхронно на каждый запрос пробы.
type Checker interface {
	Check() Check
}

// Response — тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Handler хранит зарегистрированные проверки и отвечает на пробы.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker

	version string
	started time.Time
}

func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
	}
}

// RegisterChecker добавляет проверку под уникальным именем.
// Повторная регистрация имени замещает предыдущую проверку.
func (h *Handler) RegisterChecker(name string, c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = c
}

// runAll прогоняет все проверки и возвращает их результаты вместе
// с худшим статусом. Снимок карты берётся под RLock, сами проверки
// выполняются уже без блокировки.
func (h *Handler) runAll() (map[string]Check, Status) {
	h.mu.RLock()
	snapshot := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		snapshot[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]Check, len(snapshot))
	worst := StatusHealthy
	for name, c := range snapshot {
		res := c.Check()
		results[name] = res
		if rank(res.Status) > rank(worst) {
			worst = res.Status
		}
	}
	return results, worst
}

// ServeHTTP отвечает на /healthz подробным JSON-отчётом.
// Degraded считается рабочим состоянием и отдаёт 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks, worst := h.runAll()

	code := http.StatusOK
	if worst == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        worst,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// ReadinessHandler отвечает на /readyz без тела отчёта: только
// "ready" либо 503 "not ready", если хотя бы один компонент лежит.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	_, worst := h.runAll()
	if worst == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LivenessHandler подтверждает, что процесс жив и принимает запросы.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// SimpleChecker оборачивает функцию в Checker: ошибка означает unhealthy.
type SimpleChecker struct {
	name string
	fn   func() error
}

func NewSimpleChecker(name string, fn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, fn: fn}
}

func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.fn()
	res := Check{
		Name:      c.name,
		Status:    StatusHealthy,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Message = err.Error()
	}
	return res
}
