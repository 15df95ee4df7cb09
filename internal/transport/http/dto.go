package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
	"github.com/vladislavdragonenkov/boxoffice/internal/service/booking"
)

// customerDTO принимает данные покупателя из запроса. Клиенты исторически
// присылают документ под разными ключами, поэтому DTO разбирается вручную
// и все варианты сводятся к одному каноническому полю ещё на границе.
type customerDTO struct {
	FullName string
	DNI      string
	Email    string
	Phone    string
}

// UnmarshalJSON нормализует документ: принимаются ключи dni, DNI, document
// и documento, побеждает первый непустой в этом порядке. Значение очищается
// от пробелов, точек и дефисов и приводится к верхнему регистру.
func (c *customerDTO) UnmarshalJSON(data []byte) error {
	var raw struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		DNILower  string `json:"dni"`
		DNIUpper  string `json:"DNI"`
		Document  string `json:"document"`
		Documento string `json:"documento"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.FullName = strings.TrimSpace(raw.FullName)
	if c.FullName == "" {
		c.FullName = strings.TrimSpace(raw.Name)
	}
	c.Email = strings.TrimSpace(raw.Email)
	c.Phone = strings.TrimSpace(raw.Phone)

	for _, candidate := range []string{raw.DNILower, raw.DNIUpper, raw.Document, raw.Documento} {
		if normalized := normalizeDNI(candidate); normalized != "" {
			c.DNI = normalized
			break
		}
	}
	return nil
}

// normalizeDNI приводит документ к каноническому виду.
func normalizeDNI(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	return strings.ToUpper(cleaned)
}

// createReservationRequest — тело POST /api/v1/reservations.
type createReservationRequest struct {
	Kind          string      `json:"kind"`
	Gender        string      `json:"gender"`
	Quantity      int         `json:"quantity"`
	VIPLocationID string      `json:"vip_location_id"`
	TableNumber   int         `json:"table_number"`
	PaymentMethod string      `json:"payment_method"`
	Customer      customerDTO `json:"customer"`
}

func (r *createReservationRequest) toInput() booking.CreateInput {
	return booking.CreateInput{
		Kind:          domain.Kind(r.Kind),
		Gender:        domain.Gender(r.Gender),
		Quantity:      r.Quantity,
		VIPLocationID: r.VIPLocationID,
		TableNumber:   r.TableNumber,
		PaymentMethod: r.PaymentMethod,
		Customer: domain.Customer{
			FullName: r.Customer.FullName,
			DNI:      r.Customer.DNI,
			Email:    r.Customer.Email,
			Phone:    r.Customer.Phone,
		},
	}
}

// reservationResponse — представление резервации наружу. Код валидации
// наружу не отдаётся, только факт его наличия.
type reservationResponse struct {
	ID                string    `json:"id"`
	Kind              string    `json:"kind"`
	Gender            string    `json:"gender,omitempty"`
	Quantity          int       `json:"quantity,omitempty"`
	TableCount        int       `json:"table_count,omitempty"`
	VIPLocationID     string    `json:"vip_location_id,omitempty"`
	TableNumber       int       `json:"table_number,omitempty"`
	TotalPriceMinor   int64     `json:"total_price_minor"`
	Currency          string    `json:"currency"`
	PaymentStatus     string    `json:"payment_status"`
	QRCode            string    `json:"qr_code"`
	HasValidationCode bool      `json:"has_validation_code"`
	ExpiresAt         time.Time `json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:                res.ID,
		Kind:              string(res.Kind),
		Gender:            string(res.Gender),
		Quantity:          res.Quantity,
		TableCount:        res.TableCount,
		VIPLocationID:     res.VIPLocationID,
		TableNumber:       res.TableNumber,
		TotalPriceMinor:   res.TotalPriceMinor,
		Currency:          res.Currency,
		PaymentStatus:     string(res.PaymentStatus),
		QRCode:            res.QRCode,
		HasValidationCode: res.ValidationCode != "",
		ExpiresAt:         res.ExpiresAt,
		CreatedAt:         res.CreatedAt,
	}
}

// reconcileRequest — тело POST /api/v1/reconcile. Заполняется ровно одно поле.
type reconcileRequest struct {
	PaymentID    string `json:"payment_id"`
	OrderID      string `json:"order_id"`
	PreferenceID string `json:"preference_id"`
}

// reconcileResponse сообщает итог сверки.
type reconcileResponse struct {
	ReservationID     string `json:"reservation_id"`
	Status            string `json:"status"`
	HasValidationCode bool   `json:"has_validation_code"`
}

// capacityResponse — снимок остатков по всем категориям.
type capacityResponse struct {
	GeneratedAt time.Time          `json:"generated_at"`
	General     []generalCapacity  `json:"general"`
	VIP         []locationCapacity `json:"vip"`
}

type generalCapacity struct {
	Gender         string `json:"gender"`
	Limit          int    `json:"limit"`
	Sold           int    `json:"sold"`
	Remaining      int    `json:"remaining"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Currency       string `json:"currency"`
}

type locationCapacity struct {
	LocationID     string `json:"location_id"`
	Name           string `json:"name"`
	TableUnitSize  int    `json:"table_unit_size"`
	Limit          int    `json:"limit"`
	Sold           int    `json:"sold"`
	Remaining      int    `json:"remaining"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Currency       string `json:"currency"`
}

// quoteResponse — справочный расчёт цены с лучшей скидкой.
type quoteResponse struct {
	SubtotalMinor int64             `json:"subtotal_minor"`
	Discount      *discountResponse `json:"discount,omitempty"`
	TotalMinor    int64             `json:"total_minor"`
}

type discountResponse struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Value  int64  `json:"value"`
	MinQty int    `json:"min_qty"`
}

// tableResponse — занятость одного стола локации.
type tableResponse struct {
	TableNumber int    `json:"table_number"`
	Status      string `json:"status"`
	Capacity    int    `json:"capacity,omitempty"`
	PriceMinor  int64  `json:"price_minor,omitempty"`
}

// archiveItemResponse — одна строка админ-листинга архива.
type archiveItemResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	PaymentStatus string    `json:"payment_status"`
	CustomerName  string    `json:"customer_name"`
	Reason        string    `json:"reason"`
	ArchivedBy    string    `json:"archived_by"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// archiveListResponse — страница архивного листинга.
type archiveListResponse struct {
	Items  []archiveItemResponse `json:"items"`
	Total  int                   `json:"total"`
	Offset int                   `json:"offset"`
	Limit  int                   `json:"limit"`
}

// restoreRequest — тело POST /api/v1/archive/restore.
type restoreRequest struct {
	IDs                []string `json:"ids"`
	RegenerateCodes    bool     `json:"regenerate_codes"`
	ForcePaymentIDNull bool     `json:"force_payment_id_null"`
}

// restoreResponse перечисляет восстановленные резервации.
type restoreResponse struct {
	RestoredIDs []string `json:"restored_ids"`
}
