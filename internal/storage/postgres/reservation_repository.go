package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

type reservationRepository struct {
	q querier
}

const reservationColumns = `
	id, kind, gender, quantity, table_count, vip_location_id, table_number,
	total_price_minor, currency,
	customer_name, customer_dni, customer_email, customer_phone,
	external_payment_id, payment_status, qr_code, validation_code,
	purchase_date, expires_at, created_at, updated_at`

func (r *reservationRepository) Create(res domain.Reservation) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	_, err := r.q.db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		res.ID, string(res.Kind), string(res.Gender), res.Quantity, res.TableCount,
		res.VIPLocationID, res.TableNumber, res.TotalPriceMinor, res.Currency,
		res.Customer.FullName, res.Customer.DNI, res.Customer.Email, res.Customer.Phone,
		res.ExternalPaymentID, string(res.PaymentStatus), res.QRCode, res.ValidationCode,
		res.PurchaseDate, nullableTime(res.ExpiresAt), res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUniqueCollision
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *reservationRepository) Get(id string) (domain.Reservation, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	row := r.q.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)

	res, err := scanReservation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	return res, nil
}

func (r *reservationRepository) Update(res domain.Reservation) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	result, err := r.q.db.ExecContext(ctx, `
		UPDATE reservations
		SET kind = $2,
		    gender = $3,
		    quantity = $4,
		    table_count = $5,
		    vip_location_id = $6,
		    table_number = $7,
		    total_price_minor = $8,
		    currency = $9,
		    customer_name = $10,
		    customer_dni = $11,
		    customer_email = $12,
		    customer_phone = $13,
		    external_payment_id = $14,
		    payment_status = $15,
		    qr_code = $16,
		    validation_code = $17,
		    purchase_date = $18,
		    expires_at = $19,
		    updated_at = NOW()
		WHERE id = $1
	`,
		res.ID, string(res.Kind), string(res.Gender), res.Quantity, res.TableCount,
		res.VIPLocationID, res.TableNumber, res.TotalPriceMinor, res.Currency,
		res.Customer.FullName, res.Customer.DNI, res.Customer.Email, res.Customer.Phone,
		res.ExternalPaymentID, string(res.PaymentStatus), res.QRCode, res.ValidationCode,
		res.PurchaseDate, nullableTime(res.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUniqueCollision
		}
		return fmt.Errorf("update reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *reservationRepository) Delete(id string) error {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	result, err := r.q.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *reservationRepository) ListStale(now, cutoff time.Time, limit int) ([]domain.Reservation, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.q.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE payment_status IN ('pending', 'in_process', 'failed_preference')
		  AND (
		      (expires_at IS NOT NULL AND expires_at < $1)
		      OR (expires_at IS NULL AND purchase_date < $2)
		  )
		ORDER BY purchase_date, id
		LIMIT $3
	`, now, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale reservations: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Reservation, 0, limit)
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan stale reservation: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale reservations: %w", err)
	}
	return result, nil
}

func (r *reservationRepository) CountApprovedPersons() (int, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var total sql.NullInt64
	err := r.q.db.QueryRowContext(ctx, `
		SELECT SUM(
			CASE WHEN r.kind = 'vip'
				THEN r.table_count * GREATEST(COALESCE(l.table_unit_size, 1), 1)
				ELSE r.quantity
			END
		)
		FROM reservations r
		LEFT JOIN vip_locations l ON l.id = r.vip_location_id
		WHERE r.payment_status = 'approved'
	`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count approved persons: %w", err)
	}
	return int(total.Int64), nil
}

func (r *reservationRepository) ExistsValidationCode(code string) (bool, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var one int
	err := r.q.db.QueryRowContext(ctx, `
		SELECT 1 FROM reservations WHERE validation_code = $1 AND validation_code <> ''
	`, code).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check validation code: %w", err)
}

func (r *reservationRepository) ActiveOnTable(locationID string, tableNumber int) (bool, error) {
	ctx, cancel := r.q.opCtx()
	defer cancel()

	var one int
	err := r.q.db.QueryRowContext(ctx, `
		SELECT 1
		FROM reservations
		WHERE kind = 'vip'
		  AND vip_location_id = $1
		  AND table_number = $2
		  AND payment_status IN ('approved', 'in_process')
		LIMIT 1
	`, locationID, tableNumber).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check active table: %w", err)
}

func scanReservation(scan func(dest ...any) error) (domain.Reservation, error) {
	var (
		res       domain.Reservation
		kind      string
		gender    string
		status    string
		expiresAt sql.NullTime
	)
	err := scan(
		&res.ID, &kind, &gender, &res.Quantity, &res.TableCount,
		&res.VIPLocationID, &res.TableNumber, &res.TotalPriceMinor, &res.Currency,
		&res.Customer.FullName, &res.Customer.DNI, &res.Customer.Email, &res.Customer.Phone,
		&res.ExternalPaymentID, &status, &res.QRCode, &res.ValidationCode,
		&res.PurchaseDate, &expiresAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Kind = domain.Kind(kind)
	res.Gender = domain.Gender(gender)
	res.PaymentStatus = domain.PaymentStatus(status)
	if expiresAt.Valid {
		res.ExpiresAt = expiresAt.Time.UTC()
	}
	return res, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ domain.ReservationRepository = (*reservationRepository)(nil)
