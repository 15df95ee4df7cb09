package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// validationErrors — ошибки формы запроса, превращаются в 422.
var validationErrors = []error{
	domain.ErrCustomerNameRequired,
	domain.ErrCurrencyRequired,
	domain.ErrAmountNegative,
	domain.ErrQuantityInvalid,
	domain.ErrGenderInvalid,
	domain.ErrLocationRequired,
	domain.ErrTableNumberInvalid,
	domain.ErrKindInvalid,
	domain.ErrTableOutOfRange,
	domain.ErrConfigMissing,
	domain.ErrUnlinkedPayment,
}

// conflictErrors — состояние инвентаря не позволяет выполнить запрос, 409.
var conflictErrors = []error{
	domain.ErrInsufficientCapacity,
	domain.ErrSlotUnavailable,
	domain.ErrTableTaken,
	domain.ErrNoActiveEvent,
	domain.ErrUniqueCollision,
}

// notFoundErrors — целевая сущность отсутствует, 404.
var notFoundErrors = []error{
	domain.ErrReservationNotFound,
	domain.ErrArchiveNotFound,
	domain.ErrPaymentNotFound,
}

// writeError переводит доменную ошибку в HTTP-ответ. Нарушение инварианта
// стока и прочие неожиданные ошибки наружу не детализируются: клиент видит
// общий 500, подробности остаются в логе.
func writeError(c echo.Context, logger *log.Entry, err error) error {
	if domain.IsRetryable(err) {
		return c.JSON(http.StatusAccepted, echo.Map{
			"status": "retry_later",
			"error":  err.Error(),
		})
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
		}
	}

	if domain.IsInvariantViolation(err) {
		logger.WithError(err).Error("stock invariant violation surfaced to http layer")
	} else {
		logger.WithError(err).Error("unhandled internal error")
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
