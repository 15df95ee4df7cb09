package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/archive"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/booking"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/reconcile"
	"github.com/vladislavdragonenkov/boxoffice/internal/storage/rediscache"
)

const (
	capacityCacheKey    = "capacity:v1"
	defaultArchiveLimit = 50
	maxArchiveLimit     = 200
	adminActor          = "admin-api"
)

// Handler связывает HTTP-поверхность с сервисами бокс-офиса. Аутентификации
// на этой поверхности нет, админские операции защищаются выше по стеку.
type Handler struct {
	store    domain.Store
	factory  *booking.Factory
	engine   *reconcile.Engine
	archiver *archive.Archiver
	restorer *archive.Restorer
	cache    *rediscache.CapacityCache
	logger   *log.Entry
}

// NewHandler собирает обработчик. cache может быть nil: тогда снимок ёмкости
// каждый раз читается из хранилища.
func NewHandler(
	store domain.Store,
	factory *booking.Factory,
	engine *reconcile.Engine,
	archiver *archive.Archiver,
	restorer *archive.Restorer,
	cache *rediscache.CapacityCache,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		store:    store,
		factory:  factory,
		engine:   engine,
		archiver: archiver,
		restorer: restorer,
		cache:    cache,
		logger:   logger,
	}
}

// GetCapacity отдаёт остатки по всем категориям. При включённом redis снимок
// кешируется целиком как сериализованный JSON на короткий TTL.
func (h *Handler) GetCapacity(c echo.Context) error {
	ctx := c.Request().Context()

	if h.cache.Enabled() {
		if payload, ok := h.cache.Get(ctx, capacityCacheKey); ok {
			return c.JSONBlob(http.StatusOK, payload)
		}
	}

	var resp capacityResponse
	err := h.store.WithTx(ctx, func(tx domain.Tx) error {
		configs, err := tx.Stock().List()
		if err != nil {
			return err
		}
		locations, err := tx.Slots().Locations()
		if err != nil {
			return err
		}
		resp = buildCapacityResponse(configs, locations)
		return nil
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	if h.cache.Enabled() {
		h.cache.Set(ctx, capacityCacheKey, payload)
	}
	return c.JSONBlob(http.StatusOK, payload)
}

func buildCapacityResponse(configs []domain.StockConfig, locations []domain.VIPLocation) capacityResponse {
	names := make(map[string]domain.VIPLocation, len(locations))
	for _, loc := range locations {
		names[loc.ID] = loc
	}

	resp := capacityResponse{GeneratedAt: time.Now().UTC()}
	for i := range configs {
		cfg := configs[i]
		switch cfg.Category.Kind {
		case domain.KindGeneral:
			resp.General = append(resp.General, generalCapacity{
				Gender:         string(cfg.Category.Gender),
				Limit:          cfg.Limit,
				Sold:           cfg.Sold,
				Remaining:      cfg.Remaining(),
				UnitPriceMinor: cfg.UnitPriceMinor,
				Currency:       cfg.Currency,
			})
		case domain.KindVIP:
			loc := names[cfg.Category.LocationID]
			resp.VIP = append(resp.VIP, locationCapacity{
				LocationID:     cfg.Category.LocationID,
				Name:           loc.Name,
				TableUnitSize:  cfg.TableUnitSize,
				Limit:          cfg.Limit,
				Sold:           cfg.Sold,
				Remaining:      cfg.Remaining(),
				UnitPriceMinor: cfg.UnitPriceMinor,
				Currency:       cfg.Currency,
			})
		}
	}
	return resp
}

// GetQuote отдаёт справочный расчёт цены общего входа с лучшей скидкой.
// Скидка информационная: сервер бронирует по прайсу.
func (h *Handler) GetQuote(c echo.Context) error {
	gender := domain.Gender(c.QueryParam("gender"))
	quantity, err := strconv.Atoi(c.QueryParam("quantity"))
	if err != nil || quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be a positive integer"})
	}

	quote, err := h.factory.QuoteGeneral(c.Request().Context(), gender, quantity)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp := quoteResponse{
		SubtotalMinor: quote.SubtotalMinor,
		TotalMinor:    quote.TotalMinor,
	}
	if quote.DiscountRule != nil {
		resp.Discount = &discountResponse{
			ID:     quote.DiscountRule.ID,
			Type:   string(quote.DiscountRule.Type),
			Value:  quote.DiscountRule.Value,
			MinQty: quote.DiscountRule.MinQty,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ListTables отдаёт постольную занятость одной VIP-локации.
func (h *Handler) ListTables(c echo.Context) error {
	locationID := c.Param("id")

	var tables []tableResponse
	err := h.store.WithTx(c.Request().Context(), func(tx domain.Tx) error {
		if _, err := tx.Slots().Location(locationID); err != nil {
			return err
		}
		slots, err := tx.Slots().ListByLocation(locationID)
		if err != nil {
			return err
		}
		tables = make([]tableResponse, 0, len(slots))
		for _, slot := range slots {
			tables = append(tables, tableResponse{
				TableNumber: slot.TableNumber,
				Status:      string(slot.Status),
				Capacity:    slot.Capacity,
				PriceMinor:  slot.PriceMinor,
			})
		}
		return nil
	})
	if err != nil {
		// Неизвестная локация в пути запроса — это 404, а не ошибка формы.
		if errors.Is(err, domain.ErrLocationRequired) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vip location not found"})
		}
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"location_id": locationID, "tables": tables})
}

// CreateReservation создаёт pending-резервацию.
func (h *Handler) CreateReservation(c echo.Context) error {
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.factory.Create(c.Request().Context(), req.toInput())
	if err != nil {
		return writeError(c, h.logger, err)
	}

	h.invalidateCapacity(c)
	return c.JSON(http.StatusCreated, toReservationResponse(res))
}

// Reconcile сверяет платёж со шлюзом и применяет переход статуса.
// В теле должно быть заполнено ровно одно из payment_id, order_id, preference_id.
func (h *Handler) Reconcile(c echo.Context) error {
	var req reconcileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	provided := 0
	for _, id := range []string{req.PaymentID, req.OrderID, req.PreferenceID} {
		if strings.TrimSpace(id) != "" {
			provided++
		}
	}
	if provided != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "exactly one of payment_id, order_id, preference_id is required",
		})
	}

	result, err := h.engine.Reconcile(c.Request().Context(), reconcile.Request{
		PaymentID:    strings.TrimSpace(req.PaymentID),
		OrderID:      strings.TrimSpace(req.OrderID),
		PreferenceID: strings.TrimSpace(req.PreferenceID),
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	h.invalidateCapacity(c)
	return c.JSON(http.StatusOK, reconcileResponse{
		ReservationID:     result.ReservationID,
		Status:            string(result.Status),
		HasValidationCode: result.HasValidationCode,
	})
}

// ListArchive отдаёт страницу архивных снимков с фильтрами по причине,
// виду и диапазону дат архивации.
func (h *Handler) ListArchive(c echo.Context) error {
	filter, err := parseArchiveFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	var (
		snaps []domain.ArchiveSnapshot
		total int
	)
	err = h.store.WithTx(c.Request().Context(), func(tx domain.Tx) error {
		var inner error
		snaps, total, inner = tx.Archive().List(filter)
		return inner
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	items := make([]archiveItemResponse, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, archiveItemResponse{
			ID:            snap.ID,
			Kind:          string(snap.Reservation.Kind),
			PaymentStatus: string(snap.Reservation.PaymentStatus),
			CustomerName:  snap.Reservation.Customer.FullName,
			Reason:        string(snap.Reason),
			ArchivedBy:    snap.ArchivedBy,
			ArchivedAt:    snap.ArchivedAt,
		})
	}
	return c.JSON(http.StatusOK, archiveListResponse{
		Items:  items,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

func parseArchiveFilter(c echo.Context) (domain.ArchiveFilter, error) {
	filter := domain.ArchiveFilter{
		Reason: domain.ArchiveReason(c.QueryParam("reason")),
		Kind:   domain.Kind(c.QueryParam("kind")),
		Limit:  defaultArchiveLimit,
	}

	if raw := c.QueryParam("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("from must be RFC3339")
		}
		filter.From = from
	}
	if raw := c.QueryParam("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("to must be RFC3339")
		}
		filter.To = to
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		if limit > maxArchiveLimit {
			limit = maxArchiveLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}

// RestoreArchive восстанавливает пакет снимков. Пакет атомарен: любая
// не восстановимая запись откатывает весь запрос.
func (h *Handler) RestoreArchive(c echo.Context) error {
	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids is required"})
	}

	restored, err := h.restorer.Restore(c.Request().Context(), req.IDs, domain.RestoreOptions{
		RegenerateCodes:    req.RegenerateCodes,
		ForcePaymentIDNull: req.ForcePaymentIDNull,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	h.invalidateCapacity(c)
	return c.JSON(http.StatusOK, restoreResponse{RestoredIDs: restored})
}

// DeleteReservation архивирует живую резервацию по ручному решению админа.
// Причина берётся из query-параметра reason; пустая заменяется admin_cancelled.
func (h *Handler) DeleteReservation(c echo.Context) error {
	reason := domain.ArchiveReason(c.QueryParam("reason"))
	if reason == "" {
		reason = domain.ArchiveReasonAdminCancelled
	}

	if err := h.archiver.ArchiveOne(c.Request().Context(), c.Param("id"), reason, adminActor); err != nil {
		return writeError(c, h.logger, err)
	}

	h.invalidateCapacity(c)
	return c.NoContent(http.StatusNoContent)
}

// invalidateCapacity сбрасывает кешированный снимок ёмкости после мутаций.
func (h *Handler) invalidateCapacity(c echo.Context) {
	if h.cache.Enabled() {
		h.cache.Invalidate(c.Request().Context(), capacityCacheKey)
	}
}
