package vista

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Metrics is the observer invoked at transport and cache extension points.
// Implementations must be non-blocking; the request path never waits on
// telemetry.
type Metrics interface {
	UpstreamRequest(endpoint, status string, d time.Duration)
	UpstreamRetry(endpoint string)
	CacheHit(cache string)
	CacheMiss(cache string)
	FieldBlocked(field string)
	MappingFailure(id string)
}

type noopMetrics struct{}

func (noopMetrics) UpstreamRequest(string, string, time.Duration) {}
func (noopMetrics) UpstreamRetry(string)                          {}
func (noopMetrics) CacheHit(string)                               {}
func (noopMetrics) CacheMiss(string)                              {}
func (noopMetrics) FieldBlocked(string)                           {}
func (noopMetrics) MappingFailure(string)                         {}

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	RetryMax    int           // extra attempts after the first; default 1
	Timeout     time.Duration // per-attempt absolute timeout; default 8s
	RPS         float64       // upstream pacing; <=0 disables
	Metrics     Metrics
	FieldParser FieldErrorParser
}

// Client is the transport to the Vista CRM. It knows how to sign, pace,
// retry and classify requests; it carries no catalog semantics.
type Client struct {
	key         string
	baseURL     string
	http        *retryablehttp.Client
	limiter     *rate.Limiter
	metrics     Metrics
	fieldParser FieldErrorParser
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.FieldParser == nil {
		cfg.FieldParser = NewRegexFieldParser()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	} else if cfg.RetryMax == 0 {
		cfg.RetryMax = 1
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.CheckRetry = checkRetry
	rc.Backoff = backoffSchedule
	rc.Logger = nil

	c := &Client{
		key:         cfg.APIKey,
		baseURL:     cfg.BaseURL,
		http:        rc,
		metrics:     cfg.Metrics,
		fieldParser: cfg.FieldParser,
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), int(cfg.RPS)+1) // protect upstream quota
	}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 && req != nil && req.URL != nil {
			c.metrics.UpstreamRetry(req.URL.Path)
		}
	}
	return c
}

// checkRetry implements the retryable/terminal split: network failures and
// timeouts, 5xx, 429 and 408 are retried; everything else is terminal, with
// 401/403 explicitly never retried.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	switch {
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout:
		return true, nil
	}
	return false, nil
}

// backoffSchedule sleeps min(1s * 2^attempt, 10s) between retries.
func backoffSchedule(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	d := time.Duration(1<<uint(attemptNum)) * time.Second
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("vista %s: %w", endpoint, err)
		}
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.key)
	u := c.baseURL + endpoint + "?" + q.Encode()

	var payload any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("vista %s: encode body: %w", endpoint, err)
		}
		payload = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return nil, fmt.Errorf("vista %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.UpstreamRequest(endpoint, "error", time.Since(start))
		return nil, fmt.Errorf("vista %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.UpstreamRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := ioReadAllLimit(resp.Body, 8<<20) // 8MB guard
	if err != nil {
		return nil, fmt.Errorf("vista %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode >= 400 {
		return nil, c.classify(endpoint, resp.StatusCode, raw)
	}
	return raw, nil
}

// classify turns a non-2xx response into the typed error taxonomy.
func (c *Client) classify(endpoint string, status int, body []byte) error {
	msg := extractMessage(body)
	if status == http.StatusBadRequest {
		if field, ok := c.fieldParser.Parse(msg); ok {
			return fmt.Errorf("vista %s: %w", endpoint, &UnsupportedFieldError{Field: field, Message: msg})
		}
	}
	return &StatusError{Endpoint: endpoint, Status: status, Message: msg}
}

func extractMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if len(body) > 300 {
		body = body[:300]
	}
	return string(body)
}

// ListRecords calls GET /imoveis/listar with the given search payload.
func (c *Client) ListRecords(ctx context.Context, payload searchPayload) (ListEnvelope, error) {
	q, err := pesquisaQuery(payload)
	if err != nil {
		return ListEnvelope{}, err
	}
	raw, err := c.do(ctx, http.MethodGet, "/imoveis/listar", q, nil)
	if err != nil {
		return ListEnvelope{}, err
	}
	var env ListEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ListEnvelope{}, fmt.Errorf("vista /imoveis/listar: decode: %w", err)
	}
	return env, nil
}

// GetRecord calls GET /imoveis/detalhes for a single flat record.
func (c *Client) GetRecord(ctx context.Context, code string, fields []any) (RawRecord, error) {
	q, err := pesquisaQuery(searchPayload{Fields: fields})
	if err != nil {
		return nil, err
	}
	q.Set("imovel", code)
	raw, err := c.do(ctx, http.MethodGet, "/imoveis/detalhes", q, nil)
	if err != nil {
		return nil, err
	}
	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("vista /imoveis/detalhes: decode: %w", err)
	}
	return rec, nil
}

// GetPhotoGallery calls the dedicated photos endpoint, which answers with a
// numbered-object gallery. Feature-flagged at the provider.
func (c *Client) GetPhotoGallery(ctx context.Context, code string) ([]rawPhoto, error) {
	q := url.Values{}
	q.Set("imovel", code)
	raw, err := c.do(ctx, http.MethodGet, "/imoveis/fotos", q, nil)
	if err != nil {
		return nil, err
	}
	var list IndexedList[rawPhoto]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("vista /imoveis/fotos: decode: %w", err)
	}
	return list.Items, nil
}

// ListFieldNames calls GET /imoveis/listarcampos and returns the tenant's
// available field names. The response is a map keyed by field name.
func (c *Client) ListFieldNames(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, http.MethodGet, "/imoveis/listarcampos", nil, nil)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("vista /imoveis/listarcampos: decode: %w", err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	return names, nil
}

// ListBuildingRecords calls GET /empreendimentos/listar (same envelope shape
// as the property listing).
func (c *Client) ListBuildingRecords(ctx context.Context, payload searchPayload) (ListEnvelope, error) {
	q, err := pesquisaQuery(payload)
	if err != nil {
		return ListEnvelope{}, err
	}
	raw, err := c.do(ctx, http.MethodGet, "/empreendimentos/listar", q, nil)
	if err != nil {
		return ListEnvelope{}, err
	}
	var env ListEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ListEnvelope{}, fmt.Errorf("vista /empreendimentos/listar: decode: %w", err)
	}
	return env, nil
}

// GetBuildingRecord calls GET /empreendimentos/detalhes.
func (c *Client) GetBuildingRecord(ctx context.Context, code string, fields []any) (RawRecord, error) {
	q, err := pesquisaQuery(searchPayload{Fields: fields})
	if err != nil {
		return nil, err
	}
	q.Set("empreendimento", code)
	raw, err := c.do(ctx, http.MethodGet, "/empreendimentos/detalhes", q, nil)
	if err != nil {
		return nil, err
	}
	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("vista /empreendimentos/detalhes: decode: %w", err)
	}
	return rec, nil
}

// SendLead posts a lead to /clientes/enviarLeads and returns the raw body;
// the caller normalizes the assorted response shapes.
func (c *Client) SendLead(ctx context.Context, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/clientes/enviarLeads", nil, body)
}

func pesquisaQuery(payload searchPayload) (url.Values, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("vista: encode pesquisa: %w", err)
	}
	q := url.Values{}
	q.Set("pesquisa", string(b))
	return q, nil
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.New("payload too large")
	}
	return b, nil
}
