// Package remnawave реализует HTTP-клиент внешней VPN-панели Remnawave:
// список внутренних сквадов и управление пользователями панели (ключами).
//
// Любая сетевая ошибка, ответ 5xx или неожиданный ответ оборачиваются
// в models.ErrExternalPanelUnavailable.
package remnawave

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/squad-orchestrator/internal/config"
	"github.com/magabrotheeeer/squad-orchestrator/internal/lib/metrics"
	"github.com/magabrotheeeer/squad-orchestrator/internal/models"
)

const defaultPageSize = 500

// Client — клиент API панели.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewClient создаёт клиент по настройкам панели.
func NewClient(cfg config.Remnawave, m *metrics.Metrics, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    m,
		log:        log,
	}
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("panel responded %d: %s", e.code, e.message)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) (err error) {
	defer func() {
		if c.metrics != nil {
			c.metrics.PanelRequests.WithLabelValues(op, metrics.Result(err)).Inc()
		}
	}()

	if err = c.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	if body != nil {
		if err = json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if jsonErr := json.Unmarshal(raw, &er); jsonErr != nil || er.Message == "" {
			er.Message = strings.TrimSpace(string(raw))
		}
		return &statusError{code: resp.StatusCode, message: er.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, models.ErrExternalPanelUnavailable, err)
}

// ListSquads возвращает внутренние сквады панели.
func (c *Client) ListSquads(ctx context.Context) ([]models.ExternalSquad, error) {
	const op = "remnawave.ListSquads"
	var resp envelope[squadsResponse]
	if err := c.do(ctx, "list_squads", http.MethodGet, "/api/internal-squads", nil, nil, &resp); err != nil {
		return nil, unavailable(op, err)
	}
	squads := make([]models.ExternalSquad, 0, len(resp.Response.InternalSquads))
	for _, s := range resp.Response.InternalSquads {
		squads = append(squads, models.ExternalSquad{
			UUID:         s.UUID,
			Name:         s.Name,
			MembersCount: s.Info.MembersCount,
		})
	}
	return squads, nil
}

// CreateKey создаёт пользователя панели для нового ключа.
func (c *Client) CreateKey(ctx context.Context, p models.PanelKeyParams) (*models.PanelKey, error) {
	const op = "remnawave.CreateKey"
	req := createUserRequest{
		Username:             p.Username,
		Status:               statusActive,
		ExpireAt:             p.ExpireAt.UTC().Format(time.RFC3339),
		TrafficLimitBytes:    p.TrafficLimitBytes,
		TrafficLimitStrategy: trafficStrategyNoReset,
		ActiveInternalSquads: p.Squads,
	}
	if p.TelegramID != 0 {
		req.TelegramID = &p.TelegramID
	}
	if p.DeviceLimit > 0 {
		req.HwidDeviceLimit = &p.DeviceLimit
	}

	var resp envelope[userDTO]
	if err := c.do(ctx, "create_key", http.MethodPost, "/api/users", nil, req, &resp); err != nil {
		return nil, unavailable(op, err)
	}
	if resp.Response.UUID == "" {
		return nil, unavailable(op, errors.New("empty uuid in response"))
	}
	key := toPanelKey(resp.Response)
	return &key, nil
}

// MutateKey изменяет пользователя панели.
func (c *Client) MutateKey(ctx context.Context, keyUUID string, upd models.PanelKeyUpdate) error {
	const op = "remnawave.MutateKey"
	req := updateUserRequest{
		UUID:                 keyUUID,
		TrafficLimitBytes:    upd.TrafficLimitBytes,
		HwidDeviceLimit:      upd.DeviceLimit,
		ActiveInternalSquads: upd.Squads,
	}
	if upd.ExpireAt != nil {
		req.ExpireAt = upd.ExpireAt.UTC().Format(time.RFC3339)
	}
	if upd.Disabled != nil {
		req.Status = statusActive
		if *upd.Disabled {
			req.Status = statusDisabled
		}
	}
	if err := c.do(ctx, "mutate_key", http.MethodPatch, "/api/users", nil, req, nil); err != nil {
		return unavailable(op, err)
	}
	return nil
}

// DeleteKey удаляет пользователя панели. Отсутствующий пользователь
// считается уже удалённым.
func (c *Client) DeleteKey(ctx context.Context, keyUUID string) error {
	const op = "remnawave.DeleteKey"
	err := c.do(ctx, "delete_key", http.MethodDelete, "/api/users/"+url.PathEscape(keyUUID), nil, nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		c.log.Debug("panel key already absent", slog.String("op", op), slog.String("uuid", keyUUID))
		return nil
	}
	if err != nil {
		return unavailable(op, err)
	}
	return nil
}

// ListKeys выгружает всех пользователей панели постранично.
func (c *Client) ListKeys(ctx context.Context) ([]models.PanelKey, error) {
	const op = "remnawave.ListKeys"
	var keys []models.PanelKey
	for start := 0; ; start += c.pageSize {
		q := url.Values{}
		q.Set("start", strconv.Itoa(start))
		q.Set("size", strconv.Itoa(c.pageSize))

		var resp envelope[usersPage]
		if err := c.do(ctx, "list_keys", http.MethodGet, "/api/users", q, nil, &resp); err != nil {
			return nil, unavailable(op, err)
		}
		for _, u := range resp.Response.Users {
			keys = append(keys, toPanelKey(u))
		}
		if len(resp.Response.Users) == 0 || start+len(resp.Response.Users) >= resp.Response.Total {
			break
		}
	}
	return keys, nil
}

func toPanelKey(u userDTO) models.PanelKey {
	used := u.UsedTraffic
	if u.UserTraffic != nil {
		used = u.UserTraffic.UsedTrafficBytes
	}
	return models.PanelKey{
		UUID:             u.UUID,
		SubscriptionURL:  u.SubscriptionURL,
		ExpireAt:         u.ExpireAt,
		UsedTrafficBytes: used,
		Status:           u.Status,
	}
}

var usernameDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Username строит имя пользователя панели для нового ключа: только латиница,
// цифры, '_' и '-', начинается с буквы или цифры, с уникальным суффиксом,
// так как у одного пользователя может быть несколько ключей.
func Username(username string, telegramID int64) string {
	base := usernameDisallowed.ReplaceAllString(username, "")
	if base == "" {
		base = fmt.Sprintf("user_%d", telegramID)
	}
	if base[0] == '_' || base[0] == '-' {
		base = "u" + base
	}
	if len(base) > 24 {
		base = base[:24]
	}
	return base + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
