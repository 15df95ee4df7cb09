package kafka

// Топики событийного контура. Основной топик несёт конверты из
// transactional outbox; в DLQ попадают записи, пережившие все попытки
// публикации, откуда их возвращает cmd/dlq-reprocess.
const (
	TopicReservationEvents = "boxoffice.reservation.events"
	TopicDeadLetterQueue   = "boxoffice.dlq"
)
