// Package cdp drives an already running browser over the devtools protocol
// to read the report pages of the merchant backend.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mtreport-backend/internal/assert"
	"mtreport-backend/internal/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
	"nhooyr.io/websocket"
)

var tracer = otel.Tracer("mtreport.cdp")

const (
	report_targets = "client.targets"
	report_attach  = "client.attach"
)

// Target is a debuggable browser tab as listed by /json/list.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	Url                  string `json:"url"`
	WebSocketDebuggerUrl string `json:"webSocketDebuggerUrl"`
}

// Client talks to the devtools http endpoint of a browser.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func NewClient(endpoint string, tel telemetry.API) *Client {
	assert.NotEmptyStr(endpoint, "endpoint")
	assert.NotNil(tel, "telemetry")

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(endpoint, "/"))
	client.SetHeader("accept", "application/json")
	instrument(client)
	return &Client{
		http: client,
		tel:  telemetry.NewScopedAPI("cdp", tel),
	}
}

func instrument(client *resty.Client) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), "http "+req.Method)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()
		// the raw request only exists once the request was sent
		span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
		span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		slog.ErrorContext(req.Context(), "devtools request failed", "url", req.URL, "err", err)
	})
}

// Targets lists the open page targets.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	var targets []Target
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&targets).
		Get("/json/list")
	if err != nil {
		c.tel.ReportBroken(report_targets, err)
		return nil, fmt.Errorf("list targets: %w", err)
	}
	if res.IsError() {
		err := fmt.Errorf("list targets: %s", res.Status())
		c.tel.ReportBroken(report_targets, err)
		return nil, err
	}

	pages := targets[:0]
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// FindTarget returns the first page whose url contains urlPart.
func (c *Client) FindTarget(ctx context.Context, urlPart string) (Target, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return Target{}, err
	}
	for _, t := range targets {
		if strings.Contains(t.Url, urlPart) {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("no open tab matches %q (%d tabs open)", urlPart, len(targets))
}

// Attach opens a protocol session on the target.
func (c *Client) Attach(ctx context.Context, target Target) (*Session, error) {
	if target.WebSocketDebuggerUrl == "" {
		return nil, fmt.Errorf("target %s has no debugger url, is another debugger attached?", target.ID)
	}
	conn, _, err := websocket.Dial(ctx, target.WebSocketDebuggerUrl, nil)
	if err != nil {
		c.tel.ReportBroken(report_attach, target.Url, err)
		return nil, fmt.Errorf("attach to %s: %w", target.Url, err)
	}
	// report documents easily exceed the default 32KiB message limit
	conn.SetReadLimit(64 << 20)
	return newSession(conn), nil
}
