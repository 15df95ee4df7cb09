package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

const defaultBaseURL = "https://api.mercadopago.com"

// Client — адаптер платёжного шлюза. Чистые чтения с ограниченными
// повторами; локально ничего не мутирует.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	policy      RetryPolicy
	logger      *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithBaseURL переопределяет адрес шлюза (тесты, sandbox-прокси).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient подставляет готовый http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryPolicy задаёт политику повторов.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient создаёт клиент шлюза с политикой повторов по умолчанию.
func NewClient(accessToken string, options ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		policy:      DefaultRetryPolicy(),
		logger:      log.WithField("component", "mercadopago-client"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// paymentDTO — каркас ответа шлюза по платежу. Суммы приходят float,
// на границе сразу приводятся к minor units.
type paymentDTO struct {
	ID                json.Number            `json:"id"`
	Status            string                 `json:"status"`
	StatusDetail      string                 `json:"status_detail"`
	CurrencyID        string                 `json:"currency_id"`
	TransactionAmount float64                `json:"transaction_amount"`
	ExternalReference string                 `json:"external_reference"`
	LiveMode          bool                   `json:"live_mode"`
	Metadata          map[string]interface{} `json:"metadata"`
}

type orderDTO struct {
	ID       json.Number  `json:"id"`
	Payments []paymentDTO `json:"payments"`
}

type searchDTO struct {
	Results []paymentDTO `json:"results"`
}

func (d *paymentDTO) toDomain() domain.GatewayPayment {
	meta := make(map[string]string, len(d.Metadata))
	for k, v := range d.Metadata {
		meta[k] = fmt.Sprint(v)
	}
	return domain.GatewayPayment{
		ID:                d.ID.String(),
		Status:            d.Status,
		StatusDetail:      d.StatusDetail,
		Currency:          d.CurrencyID,
		AmountMinor:       int64(math.Round(d.TransactionAmount * 100)),
		ExternalReference: d.ExternalReference,
		LiveMode:          d.LiveMode,
		Metadata:          meta,
	}
}

// GetPayment возвращает авторитетное состояние платежа.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (domain.GatewayPayment, error) {
	var dto paymentDTO
	err := doWithRetry(ctx, c.policy, c.logger, "get-payment", func() error {
		return c.getJSON(ctx, "/v1/payments/"+url.PathEscape(paymentID), &dto)
	})
	if err != nil {
		return domain.GatewayPayment{}, c.classify(err)
	}
	return dto.toDomain(), nil
}

// GetOrder возвращает заказ шлюза со всеми его платежами.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.GatewayOrder, error) {
	var dto orderDTO
	err := doWithRetry(ctx, c.policy, c.logger, "get-order", func() error {
		return c.getJSON(ctx, "/merchant_orders/"+url.PathEscape(orderID), &dto)
	})
	if err != nil {
		return domain.GatewayOrder{}, c.classify(err)
	}

	order := domain.GatewayOrder{ID: dto.ID.String()}
	for i := range dto.Payments {
		order.Payments = append(order.Payments, dto.Payments[i].toDomain())
	}
	return order, nil
}

// SearchByPreference ищет платежи, созданные из клиентского preference.
func (c *Client) SearchByPreference(ctx context.Context, preferenceID string) ([]domain.GatewayPayment, error) {
	var dto searchDTO
	err := doWithRetry(ctx, c.policy, c.logger, "search-by-preference", func() error {
		return c.getJSON(ctx, "/v1/payments/search?preference_id="+url.QueryEscape(preferenceID), &dto)
	})
	if err != nil {
		return nil, c.classify(err)
	}

	payments := make([]domain.GatewayPayment, 0, len(dto.Results))
	for i := range dto.Results {
		payments = append(payments, dto.Results[i].toDomain())
	}
	return payments, nil
}

// classify приводит исчерпанные повторы к доменной ошибке: так наверх уходит
// «повторите позже», а не транспортные детали.
func (c *Client) classify(err error) error {
	switch {
	case notFound(err):
		return fmt.Errorf("%w: %v", domain.ErrPaymentNotFound, err)
	case retryable(err):
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	default:
		return err
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &statusError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

var _ domain.PaymentGateway = (*Client)(nil)
