package domain

import "time"

// Kind различает два вида продаваемых мест: общий вход и VIP-столы.
type Kind string

const (
	// KindGeneral — вход общего типа, количество мест на человека.
	KindGeneral Kind = "general"
	// KindVIP — нумерованный стол в одной из VIP-локаций.
	KindVIP Kind = "vip"
)

// Gender делит общий вход на подкатегории со своими лимитами.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// PaymentStatus отражает статус оплаты резервации, полученный от платёжного шлюза.
type PaymentStatus string

const (
	// PaymentStatusPending — резервация создана, подтверждение оплаты ещё не пришло.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusApproved — оплата подтверждена; единственный статус, который фиксирует сток.
	PaymentStatusApproved PaymentStatus = "approved"
	// PaymentStatusInProcess — шлюз ещё обрабатывает платёж.
	PaymentStatusInProcess PaymentStatus = "in_process"
	// PaymentStatusRejected — платёж отклонён шлюзом.
	PaymentStatusRejected PaymentStatus = "rejected"
	// PaymentStatusFailedPreference — клиент прервал оплату на стороне шлюза.
	PaymentStatusFailedPreference PaymentStatus = "failed_preference"
	// PaymentStatusCancelled — платёж отменён.
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusRefunded — деньги возвращены клиенту.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusChargedBack — банк клиента оспорил списание.
	PaymentStatusChargedBack PaymentStatus = "charged_back"
)

// IsReverting сообщает, снимает ли статус ранее зафиксированный сток.
// Переход approved → один из этих статусов обязан симметрично вернуть счётчики.
func (s PaymentStatus) IsReverting() bool {
	switch s {
	case PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusChargedBack:
		return true
	}
	return false
}

// IsStale сообщает, подлежит ли статус архивации по таймауту.
func (s PaymentStatus) IsStale() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusInProcess, PaymentStatusFailedPreference:
		return true
	}
	return false
}

// Customer — нормализованные данные покупателя. DNI приводится к каноническому
// виду на границе транспорта, внутрь неоднозначность не просачивается.
type Customer struct {
	FullName string
	DNI      string
	Email    string
	Phone    string
}

// Reservation описывает одну попытку покупки: живую строку инвентаря
// до и после выяснения судьбы платежа.
type Reservation struct {
	ID                string
	Kind              Kind
	Gender            Gender // только для general
	Quantity          int    // человек для general, для vip всегда 0
	TableCount        int    // столов для vip, обычно 1
	VIPLocationID     string
	TableNumber       int
	TotalPriceMinor   int64
	Currency          string
	Customer          Customer
	ExternalPaymentID string
	PaymentStatus     PaymentStatus
	QRCode            string
	ValidationCode    string // 6 цифр, появляется только после approved
	PurchaseDate      time.Time
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Persons возвращает число людей, которое резервация занимает в общем лимите
// мероприятия. VIP-столы конвертируются по вместимости стола.
func (r *Reservation) Persons(tableUnitSize int) int {
	if r.Kind == KindVIP {
		if tableUnitSize <= 0 {
			tableUnitSize = 1
		}
		return r.TableCount * tableUnitSize
	}
	return r.Quantity
}

// Validate проверяет базовые инварианты резервации и возвращает список замечаний.
func (r *Reservation) Validate() []error {
	var errs []error

	if r.Customer.FullName == "" {
		errs = append(errs, ErrCustomerNameRequired)
	}
	if r.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if r.TotalPriceMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	switch r.Kind {
	case KindGeneral:
		if r.Quantity <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if r.Gender != GenderMale && r.Gender != GenderFemale {
			errs = append(errs, ErrGenderInvalid)
		}
	case KindVIP:
		if r.TableCount <= 0 {
			errs = append(errs, ErrQuantityInvalid)
		}
		if r.VIPLocationID == "" {
			errs = append(errs, ErrLocationRequired)
		}
		if r.TableNumber <= 0 {
			errs = append(errs, ErrTableNumberInvalid)
		}
	default:
		errs = append(errs, ErrKindInvalid)
	}

	return errs
}
