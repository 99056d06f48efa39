package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LeBoy2525/assist-backend/internal/logger"
)

// Client подтверждает платежи через внешний платёжный сервис.
// Сервис отвечает за фактическое списание; платформа только спрашивает,
// прошёл ли платёж по переданной ссылке.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	apiKey := os.Getenv("PAYMENT_API_KEY")

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref"`
}

type confirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Status    string `json:"status"`
}

// Confirm спрашивает у платёжного сервиса, прошёл ли платёж.
// Ошибка транспорта или 5xx — сбой зависимости; осмысленный отказ
// сервиса возвращается как (false, nil).
func (c *Client) Confirm(ctx context.Context, paymentRef string) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("payment: baseURL не задан")
	}

	body, err := json.Marshal(confirmRequest{PaymentRef: paymentRef})
	if err != nil {
		return false, err
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/v1/payments/confirm"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("payment: запрос не выполнен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("payment: код ответа %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Сервис знает ссылку и отвечает отказом.
		return false, nil
	}

	var out confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("payment: некорректный ответ: %w", err)
	}

	return out.Confirmed, nil
}

// NoopConfirmer подтверждает любой непустой платёж. Только для development:
// позволяет прогнать жизненный цикл миссии без внешнего сервиса.
type NoopConfirmer struct{}

func (NoopConfirmer) Confirm(ctx context.Context, paymentRef string) (bool, error) {
	if logger.Log != nil {
		logger.Log.Warnf("payment: noop-подтверждение платежа %s", paymentRef)
	}
	return paymentRef != "", nil
}
