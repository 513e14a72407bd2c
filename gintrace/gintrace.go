// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gintrace annotates the ambient trace span with HTTP and
// application attributes for every gin request. The span itself is
// created and propagated by otelgin or another upstream
// instrumentation; this middleware only reads and mutates it.
package gintrace

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Identity describes the authenticated caller of a request. Handlers
// or auth middleware may attach an Identity to the gin context under
// [IdentityKey].
type Identity interface {
	Authenticated() bool
	ID() string
	Username() string
}

// IdentityKey is the gin context key the default identity extractor
// reads the caller's [Identity] from.
const IdentityKey = "otelcx/identity"

type options struct {
	log      *slog.Logger
	identity func(*gin.Context) Identity
}

// Option configures the middleware.
type Option func(*options)

// Logger sets the logger used to report span mutation failures.
func Logger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// IdentityExtractor replaces how the caller's identity is resolved
// from the request.
func IdentityExtractor(f func(*gin.Context) Identity) Option {
	return func(o *options) {
		o.identity = f
	}
}

func defaultIdentity(c *gin.Context) Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(Identity)
	return id
}

// Middleware returns a gin middleware which enriches the current
// span. A request whose span is absent or not recording passes
// through untouched. Span mutation failures are logged and never
// affect the response.
func Middleware(opts ...Option) gin.HandlerFunc {
	o := &options{
		log:      slog.Default(),
		identity: defaultIdentity,
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span == nil || !span.IsRecording() {
			c.Next()
			return
		}

		guard := &warnOnce{log: o.log}
		guard.do(func() {
			annotateRequest(span, c, o)
		})

		defer func() {
			if r := recover(); r != nil {
				guard.do(func() {
					recordPanic(span, r)
				})
				panic(r)
			}

			guard.do(func() {
				status := c.Writer.Status()
				span.SetAttributes(attribute.Int("http.status_code", status))
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}
			})
		}()

		c.Next()
	}
}

func annotateRequest(span trace.Span, c *gin.Context, o *options) {
	r := c.Request

	SetAttribute(span, "http.method", r.Method)
	SetAttribute(span, "http.url", absoluteURL(r))
	SetAttribute(span, "http.scheme", scheme(r))
	SetAttribute(span, "http.host", r.Host)
	SetAttribute(span, "http.user_agent", r.UserAgent())
	SetAttribute(span, "http.client_ip", ClientIP(r))
	if route := c.FullPath(); route != "" {
		SetAttribute(span, "http.route", route)
	}

	id := o.identity(c)
	SetAttribute(span, "enduser.id", userID(id))
	SetAttribute(span, "enduser.username", username(id))
}

func recordPanic(span trace.Span, r any) {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String("exception.type", fmt.Sprintf("%T", r)),
		attribute.String("exception.message", err.Error()),
	)
}

// SetAttribute sets a span attribute, accepting any value. Scalar
// values are set with their native type; composite values are
// stringified first so the SDK never rejects them.
func SetAttribute(span trace.Span, key string, value any) {
	switch v := value.(type) {
	case nil:
		span.SetAttributes(attribute.String(key, ""))
	case string:
		span.SetAttributes(attribute.String(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprint(v)))
	}
}

// ClientIP derives the client address, preferring the first entry of
// the X-Forwarded-For header over the direct remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func absoluteURL(r *http.Request) string {
	return scheme(r) + "://" + r.Host + r.URL.RequestURI()
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}

func userID(id Identity) string {
	if id == nil || !id.Authenticated() {
		return ""
	}
	return id.ID()
}

func username(id Identity) string {
	if id == nil || !id.Authenticated() {
		return ""
	}
	return id.Username()
}

// warnOnce runs span mutations inside a recover boundary. A broken
// telemetry call must never break the HTTP response; the first
// failure per request is logged as a warning.
type warnOnce struct {
	log    *slog.Logger
	warned bool
}

func (w *warnOnce) do(f func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if w.warned {
			return
		}
		w.warned = true
		w.log.Warn("failed to annotate request span", slog.String("error", fmt.Sprint(r)))
	}()

	f()
}
