package reconcile

import (
	"strings"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

// Гейтвейные статусы и детали, участвующие в решении об approve.
const (
	gatewayStatusApproved    = "approved"
	gatewayStatusPending     = "pending"
	gatewayStatusInProcess   = "in_process"
	gatewayStatusInMediation = "in_mediation"
	gatewayStatusRejected    = "rejected"
	gatewayStatusCancelled   = "cancelled"
	gatewayStatusRefunded    = "refunded"
	gatewayStatusChargedBack = "charged_back"

	// detailAccredited означает «деньги фактически зачислены».
	detailAccredited = "accredited"
)

// decision — итог проверки платежа против ожиданий резервации.
type decision struct {
	status domain.PaymentStatus
	// verified: для approved — прошла ли проверка суммы/валюты/ссылки.
	verified bool
}

// expected описывает, что резервация ожидает от платежа.
type expected struct {
	AmountMinor  int64
	Currency     string
	Reference    string
	EpsilonMinor int64
	// Sandbox разрешает relaxed approval: без требования accredited,
	// потому что песочницы шлюза часто не отдают status_detail.
	Sandbox bool
}

// decide отображает состояние платежа в статус резервации.
//
// Строгое подтверждение: status=approved + status_detail=accredited +
// совпадение валюты, суммы (с допуском в EpsilonMinor) и ссылки.
// Relaxed (только не в live-режиме): то же без требования accredited.
// Источник истины по сумме — резервация; сумма шлюза участвует
// только в проверке равенства.
func decide(p domain.GatewayPayment, exp expected) decision {
	switch strings.ToLower(p.Status) {
	case gatewayStatusApproved:
		if approvalVerified(p, exp) {
			return decision{status: domain.PaymentStatusApproved, verified: true}
		}
		// Шлюз говорит approved, но проверка не сошлась: оставляем платёж
		// в работе, решение примет повторная сверка или оператор.
		return decision{status: domain.PaymentStatusInProcess}
	case gatewayStatusPending:
		return decision{status: domain.PaymentStatusPending}
	case gatewayStatusInProcess, gatewayStatusInMediation, "authorized":
		return decision{status: domain.PaymentStatusInProcess}
	case gatewayStatusRejected:
		return decision{status: domain.PaymentStatusRejected}
	case gatewayStatusCancelled:
		return decision{status: domain.PaymentStatusCancelled}
	case gatewayStatusRefunded:
		return decision{status: domain.PaymentStatusRefunded}
	case gatewayStatusChargedBack, "chargedback":
		return decision{status: domain.PaymentStatusChargedBack}
	default:
		return decision{status: domain.PaymentStatusInProcess}
	}
}

func approvalVerified(p domain.GatewayPayment, exp expected) bool {
	if !strings.EqualFold(p.Currency, exp.Currency) {
		return false
	}
	if !amountMatches(p.AmountMinor, exp.AmountMinor, exp.EpsilonMinor) {
		return false
	}
	if !referenceMatches(p, exp.Reference) {
		return false
	}
	if exp.Sandbox && !p.LiveMode {
		// Relaxed: в песочнице детали зачисления не требуем.
		return true
	}
	return strings.EqualFold(p.StatusDetail, detailAccredited)
}

func amountMatches(got, want, epsilon int64) bool {
	if epsilon < 0 {
		epsilon = 0
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= epsilon
}

func referenceMatches(p domain.GatewayPayment, want string) bool {
	if want == "" {
		return true
	}
	if p.ExternalReference == want {
		return true
	}
	// Ссылка могла приехать только в metadata.
	return p.Metadata["reservation_id"] != "" && strings.HasSuffix(want, ":"+p.Metadata["reservation_id"])
}

// paymentReference извлекает ссылку на резервацию из платежа: сначала
// metadata, затем структурированная строка "<kind>:<reservationId>".
func paymentReference(p domain.GatewayPayment) (domain.Kind, string, bool) {
	if id := p.Metadata["reservation_id"]; id != "" {
		kind := domain.Kind(p.Metadata["reservation_kind"])
		if kind != domain.KindGeneral && kind != domain.KindVIP {
			kind = ""
		}
		return kind, id, true
	}

	ref := strings.TrimSpace(p.ExternalReference)
	if ref == "" {
		return "", "", false
	}
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}
	kind := domain.Kind(parts[0])
	if kind != domain.KindGeneral && kind != domain.KindVIP {
		return "", "", false
	}
	return kind, parts[1], true
}
