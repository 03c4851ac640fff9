package web

import (
	"context"
	"fmt"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/valyala/fasthttp"
)

// FastRequestContext wraps a fasthttp request with its request ID, path
// parameters and a Go context that middleware may enrich.
type FastRequestContext struct {
	RequestCtx *fasthttp.RequestCtx
	Params     map[string]string
	requestID  string
	ctx        context.Context
}

func newFastRequestContext(ctx *fasthttp.RequestCtx, requestID string) *FastRequestContext {
	return &FastRequestContext{
		RequestCtx: ctx,
		Params:     make(map[string]string),
		requestID:  requestID,
		ctx:        core.WithRequestID(context.Background(), requestID),
	}
}

// JSON writes data as JSON with statusCode.
func (c *FastRequestContext) JSON(statusCode int, data interface{}) error {
	if statusCode < 100 || statusCode > 599 {
		return fmt.Errorf("invalid status code: %d", statusCode)
	}

	jsonData, err := core.JSONEncode(data)
	if err != nil {
		return fmt.Errorf("json encode error: %w", err)
	}

	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("application/json")
	_, err = c.RequestCtx.Write(jsonData)
	return err
}

// Text writes a text/plain response.
func (c *FastRequestContext) Text(statusCode int, text string) error {
	c.RequestCtx.SetStatusCode(statusCode)
	c.RequestCtx.SetContentType("text/plain; charset=utf-8")
	_, err := c.RequestCtx.WriteString(text)
	return err
}

// Body returns a copy of the request body.
func (c *FastRequestContext) Body() []byte {
	body := c.RequestCtx.PostBody()
	out := make([]byte, len(body))
	copy(out, body)
	return out
}

// Query returns the query parameter key.
func (c *FastRequestContext) Query(key string) string {
	return string(c.RequestCtx.QueryArgs().Peek(key))
}

// Param returns the path parameter key.
func (c *FastRequestContext) Param(key string) string {
	return c.Params[key]
}

func (c *FastRequestContext) Method() string {
	return string(c.RequestCtx.Method())
}

func (c *FastRequestContext) Path() string {
	return string(c.RequestCtx.Path())
}

// Error writes msg with statusCode.
func (c *FastRequestContext) Error(msg string, statusCode int) {
	c.RequestCtx.Error(msg, statusCode)
}

// RequestID returns the request ID for this request
func (c *FastRequestContext) RequestID() string {
	return c.requestID
}

// Context returns the request context; it carries the request ID.
func (c *FastRequestContext) Context() context.Context {
	return c.ctx
}

// SetContext replaces the request context, e.g. to attach a span.
func (c *FastRequestContext) SetContext(ctx context.Context) {
	if ctx != nil {
		c.ctx = ctx
	}
}
