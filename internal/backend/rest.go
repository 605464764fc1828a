package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/metrics"
	"github.com/lingoloop/notifier/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const userAgent = "lingoloop-notifier/1.0"

// RESTConfig configures the PostgREST client
type RESTConfig struct {
	BaseURL     string // project url, without /rest/v1
	AnonKey     string
	AccessToken string
	Timeout     time.Duration
	Transport   http.RoundTripper
}

// RESTClient talks to the PostgREST endpoint of the hosted database
type RESTClient struct {
	http *resty.Client
}

// NewRESTClient builds a resty client with the apikey and bearer headers set
func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := resty.New()
	c.SetBaseURL(trimSlash(cfg.BaseURL) + "/rest/v1")
	c.SetTimeout(cfg.Timeout)
	c.SetTransport(telemetry.NewTransport(cfg.Transport))
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	c.SetHeader("User-Agent", userAgent)
	c.SetHeader("apikey", cfg.AnonKey)

	token := cfg.AccessToken
	if token == "" {
		token = cfg.AnonKey
	}
	c.SetAuthToken(token)

	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", zap.String("method", req.Method), zap.String("url", req.URL))
		return nil
	})
	c.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response",
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", resp.Time()),
		)
		return nil
	})

	return &RESTClient{http: c}
}

// SetAccessToken swaps the bearer token after an identity change
func (c *RESTClient) SetAccessToken(token string) {
	c.http.SetAuthToken(token)
}

func (c *RESTClient) FetchByID(ctx context.Context, table, id string, dest interface{}) error {
	var rows []jsoniter.RawMessage
	err := c.do(ctx, "fetch", table, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetQueryParam("select", "*").
			SetQueryParam("id", "eq."+id).
			SetQueryParam("limit", "1").
			SetResult(&rows).
			Get("/" + table)
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return apperrors.NotFound(table)
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return apperrors.InternalError("decode " + table + " row").WithCause(err)
	}
	return nil
}

func (c *RESTClient) Select(ctx context.Context, table string, q Query, dest interface{}) error {
	return c.do(ctx, "select", table, func(req *resty.Request) (*resty.Response, error) {
		req.SetQueryParam("select", q.selectList())
		for _, col := range q.Filter.Keys() {
			req.SetQueryParam(col, "eq."+q.Filter[col])
		}
		if q.OrderBy != "" {
			dir := "asc"
			if q.Desc {
				dir = "desc"
			}
			req.SetQueryParam("order", q.OrderBy+"."+dir)
		}
		if q.Limit > 0 {
			req.SetQueryParam("limit", fmt.Sprintf("%d", q.Limit))
		}
		return req.SetResult(dest).Get("/" + table)
	})
}

func (c *RESTClient) Update(ctx context.Context, table, id string, fields map[string]interface{}) error {
	return c.do(ctx, "update", table, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetQueryParam("id", "eq."+id).
			SetHeader("Prefer", "return=minimal").
			SetBody(fields).
			Patch("/" + table)
	})
}

func (c *RESTClient) Delete(ctx context.Context, table, id string) error {
	return c.do(ctx, "delete", table, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetQueryParam("id", "eq."+id).
			SetHeader("Prefer", "return=minimal").
			Delete("/" + table)
	})
}

// BulkDelete removes every row matching filter in one request. An empty
// filter is rejected rather than truncating the table.
func (c *RESTClient) BulkDelete(ctx context.Context, table string, filter Filter) error {
	if len(filter) == 0 {
		return apperrors.ValidationError("filter", "bulk delete requires at least one constraint")
	}
	return c.do(ctx, "bulk_delete", table, func(req *resty.Request) (*resty.Response, error) {
		for _, col := range filter.Keys() {
			req.SetQueryParam(col, "eq."+filter[col])
		}
		return req.SetHeader("Prefer", "return=minimal").Delete("/" + table)
	})
}

func (c *RESTClient) do(ctx context.Context, op, table string, send func(*resty.Request) (*resty.Response, error)) error {
	start := time.Now()
	resp, err := send(c.http.R().SetContext(ctx))
	metrics.BackendRequestDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.BackendErrors.WithLabelValues(op, table).Inc()
		return apperrors.Categorize(err)
	}
	if !resp.IsSuccess() {
		metrics.BackendErrors.WithLabelValues(op, table).Inc()
		return apperrors.FromStatus(resp.StatusCode(), op+" "+table, resp.String())
	}
	return nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
