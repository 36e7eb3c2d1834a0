package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
)

const maxResponseBytes = 4 << 20

// Operation names, appended to the base URL.
const (
	opProfile      = "profile"
	opInventory    = "inventory"
	opChannels     = "channels"
	opPriorityPlan = "priority-plan"
	opWatchPing    = "watch-ping"
	opClaim        = "claim"
)

// HTTPClientConfig configures the JSON-over-HTTP gateway.
type HTTPClientConfig struct {
	BaseURL         string
	Token           string
	MaxRetries      uint64
	InitialInterval time.Duration
}

// HTTPClient implements RemoteGateway as JSON POSTs to <BaseURL>/<operation>.
// Responses are wrapped in an envelope: {"ok": bool, "data": ..., "error": {"code","message"}}.
type HTTPClient struct {
	client *http.Client
	cfg    HTTPClientConfig
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *RemoteError    `json:"error"`
}

// NewHTTPClient creates a gateway client. A nil client uses a 30s timeout default.
func NewHTTPClient(client *http.Client, cfg HTTPClientConfig) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPClient{
		client: client,
		cfg:    cfg,
	}
}

func (c *HTTPClient) FetchProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.call(ctx, opProfile, struct{}{}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) FetchInventory(ctx context.Context) ([]InventoryItem, error) {
	var items []InventoryItem
	if err := c.call(ctx, opInventory, struct{}{}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *HTTPClient) FetchChannels(ctx context.Context, game string) ([]ChannelEntry, error) {
	var channels []ChannelEntry
	req := struct {
		Game string `json:"game"`
	}{Game: game}
	if err := c.call(ctx, opChannels, req, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *HTTPClient) FetchPriorityPlan(ctx context.Context, priorityGames []string) (*PriorityPlan, error) {
	var plan PriorityPlan
	req := struct {
		Games []string `json:"games"`
	}{Games: priorityGames}
	if err := c.call(ctx, opPriorityPlan, req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *HTTPClient) SendWatchPing(ctx context.Context, target PingTarget) error {
	return c.call(ctx, opWatchPing, target, nil)
}

func (c *HTTPClient) ClaimDrop(ctx context.Context, ref ClaimRef) error {
	return c.call(ctx, opClaim, ref, nil)
}

// call performs one operation, retrying transient failures with exponential backoff.
// Auth failures and 4xx responses are never retried.
func (c *HTTPClient) call(ctx context.Context, op string, req interface{}, out interface{}) error {
	scope := common.StartScope(ctx, "gateway."+op, attribute.String("gateway.operation", op))
	defer scope.Finish()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	var env *envelope
	attempts := 0
	operation := func() error {
		attempts++
		e, err := c.do(scope.Ctx, op, body)
		if err != nil {
			return err
		}
		env = e
		return nil
	}
	notify := func(err error, d time.Duration) {
		scope.TraceEvent("retry", attribute.Int("attempt", attempts), attribute.String("error", err.Error()))
		scope.Log.Warnf("gateway %s failed: %v, retrying in %v", op, err, d)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.cfg.MaxRetries), scope.Ctx)
	err = backoff.RetryNotify(operation, b, notify)
	scope.SetAttributes(attribute.Int("gateway.attempts", attempts))
	if err != nil {
		scope.TraceError(err)
		return err
	}

	if !env.OK {
		if env.Error == nil {
			err := &RemoteError{Code: CodeInvalidResponse, Message: op + " returned not ok", Err: ErrInvalidResponse}
			scope.TraceError(err)
			return err
		}
		if env.Error.Code == CodeAuthInvalid {
			scope.TraceError(ErrAuthInvalid)
			return ErrAuthInvalid
		}
		scope.TraceError(env.Error)
		return env.Error
	}

	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			err := &RemoteError{Code: CodeInvalidResponse, Message: op + " returned no data", Err: ErrInvalidResponse}
			scope.TraceError(err)
			return err
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			scope.TraceError(err)
			return &RemoteError{Code: CodeInvalidResponse, Message: err.Error(), Err: ErrInvalidResponse}
		}
	}

	scope.Log.Debugf("gateway %s succeeded", op)
	return nil
}

func (c *HTTPClient) do(ctx context.Context, op string, body []byte) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+op, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build %s request: %w", op, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, &RemoteError{Code: CodeTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RemoteError{Code: CodeTransport, Message: err.Error(), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(ErrAuthInvalid)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RemoteError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: http.StatusText(resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(&RemoteError{Code: fmt.Sprintf("http_%d", resp.StatusCode), Message: http.StatusText(resp.StatusCode)})
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, backoff.Permanent(&RemoteError{Code: CodeInvalidResponse, Message: err.Error(), Err: ErrInvalidResponse})
	}
	return &env, nil
}

func (c *HTTPClient) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialInterval > 0 {
		b.InitialInterval = c.cfg.InitialInterval
	}
	return b
}

var _ RemoteGateway = (*HTTPClient)(nil)

