package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryPolicy — ограниченная политика повторов запроса к шлюзу.
// Инжектится при создании клиента; в тестах подставляется политика
// с нулевыми задержками.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter добавляет к задержке случайную долю от неё самой (0..Jitter),
	// чтобы параллельные reconcile не били в шлюз синхронно.
	Jitter float64
}

// DefaultRetryPolicy возвращает политику по умолчанию: около десяти попыток
// с экспоненциальной задержкой и потолком ~2s на попытку.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   10,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        0.2,
	}
}

// ZeroDelayPolicy — политика без задержек для тестов.
func ZeroDelayPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   maxAttempts,
		BackoffFactor: 1.0,
	}
}

// statusError переносит HTTP-статус ответа шлюза через границы повторов.
type statusError struct {
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway responded with HTTP %d", e.Status)
}

// retryable сообщает, имеет ли смысл повторить запрос. Повторяем «ещё не виден»
// (404 — лаг распространения на стороне шлюза) и серверные ошибки; остальные
// HTTP-ошибки фатальны сразу. Сетевые ошибки повторяем.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Status == 404 || se.Status >= 500
	}
	return true
}

// notFound проверяет, была ли последняя ошибка «платёж не найден».
func notFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Status == 404
}

// doWithRetry выполняет fn по политике p. Контекст обрывает ожидание между
// попытками; сама попытка доводится до конца, чтобы параллельный дубликат
// запроса не начинал backoff с нуля.
func doWithRetry(ctx context.Context, p RetryPolicy, logger *log.Entry, op string, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.WithFields(log.Fields{
					"operation": op,
					"attempt":   attempt,
				}).Info("gateway call succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !retryable(err) {
			logger.WithError(err).WithField("operation", op).Warn("gateway call failed with non-retryable error")
			return err
		}

		if attempt < p.MaxAttempts {
			wait := delay
			if p.Jitter > 0 && wait > 0 {
				wait += time.Duration(rand.Float64() * p.Jitter * float64(wait))
			}
			logger.WithFields(log.Fields{
				"operation": op,
				"attempt":   attempt,
				"delay":     wait,
				"error":     err,
			}).Debug("gateway call failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}

			delay = time.Duration(float64(delay) * p.BackoffFactor)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	logger.WithError(lastErr).WithFields(log.Fields{
		"operation":    op,
		"max_attempts": p.MaxAttempts,
	}).Warn("gateway call failed after all retry attempts")
	return lastErr
}
