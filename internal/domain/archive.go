package domain

import "time"

// ArchiveReason фиксирует, почему резервация попала в архив.
type ArchiveReason string

const (
	ArchiveReasonUserDeleted    ArchiveReason = "user_deleted"
	ArchiveReasonAdminCancelled ArchiveReason = "admin_cancelled"
	ArchiveReasonPaymentTimeout ArchiveReason = "payment_timeout"
	ArchiveReasonRefunded       ArchiveReason = "refunded"
	ArchiveReasonChargedBack    ArchiveReason = "charged_back"
	ArchiveReasonOther          ArchiveReason = "other"
)

// ArchiveSnapshot — неизменяемая копия резервации на момент удаления живой строки.
// Создаётся архиватором или ручной админ-архивацией, читается только восстановлением.
type ArchiveSnapshot struct {
	ID          string
	Reservation Reservation // пополевая копия живой строки
	ArchivedAt  time.Time
	ArchivedBy  string
	Reason      ArchiveReason
}

// ArchiveFilter задаёт условия выборки архивных строк для админ-листинга.
type ArchiveFilter struct {
	Reason ArchiveReason
	Kind   Kind
	From   time.Time
	To     time.Time
	Offset int
	Limit  int
}

// RestoreOptions — флаги пакетного восстановления из архива.
type RestoreOptions struct {
	// RegenerateCodes — выпустить новый QR-идентификатор вместо архивного.
	RegenerateCodes bool
	// ForcePaymentIDNull — обнулить внешний payment id, чтобы не столкнуться
	// с активным платежом с тем же идентификатором.
	ForcePaymentIDNull bool
}
