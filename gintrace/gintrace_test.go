// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gintrace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// spanServer starts a recording span for every request before the
// middleware under test runs, standing in for otelgin.
func spanServer(tp *sdktrace.TracerProvider, handlers ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), "request")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	engine.Use(handlers...)
	return engine
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

type testUser struct {
	authenticated bool
	id            string
	name          string
}

func (u testUser) Authenticated() bool { return u.authenticated }
func (u testUser) ID() string          { return u.id }
func (u testUser) Username() string    { return u.name }

func TestMiddleware(t *testing.T) {
	t.Run("will annotate the span", func(t *testing.T) {
		t.Run("if the request carries a recording span", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			engine := spanServer(tp, Middleware())
			engine.GET("/items/:id", func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, "/items/42?q=1", nil)
			req.Host = "example.com"
			req.Header.Set("User-Agent", "test-agent")
			req.RemoteAddr = "192.168.1.2:1234"
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			require.Len(t, sr.Ended(), 1)

			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "GET", attrs["http.method"].AsString())
			assert.Equal(t, "http://example.com/items/42?q=1", attrs["http.url"].AsString())
			assert.Equal(t, "http", attrs["http.scheme"].AsString())
			assert.Equal(t, "example.com", attrs["http.host"].AsString())
			assert.Equal(t, "test-agent", attrs["http.user_agent"].AsString())
			assert.Equal(t, "192.168.1.2", attrs["http.client_ip"].AsString())
			assert.Equal(t, "/items/:id", attrs["http.route"].AsString())
			assert.Equal(t, int64(http.StatusOK), attrs["http.status_code"].AsInt64())
		})
	})

	t.Run("will pass through", func(t *testing.T) {
		t.Run("if no span is recording", func(t *testing.T) {
			engine := gin.New()
			engine.Use(Middleware())
			engine.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusOK, w.Code)
		})
	})

	t.Run("will leave user attributes empty", func(t *testing.T) {
		t.Run("if no identity is attached", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			engine := spanServer(tp, Middleware())
			engine.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Len(t, sr.Ended(), 1)
			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "", attrs["enduser.id"].AsString())
			assert.Equal(t, "", attrs["enduser.username"].AsString())
		})

		t.Run("if the identity is not authenticated", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			setUser := func(c *gin.Context) {
				c.Set(IdentityKey, testUser{authenticated: false, id: "7", name: "anon"})
				c.Next()
			}

			engine := spanServer(tp, setUser, Middleware())
			engine.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Len(t, sr.Ended(), 1)
			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "", attrs["enduser.id"].AsString())
			assert.Equal(t, "", attrs["enduser.username"].AsString())
		})
	})

	t.Run("will set user attributes", func(t *testing.T) {
		t.Run("if an authenticated identity is attached", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			setUser := func(c *gin.Context) {
				c.Set(IdentityKey, testUser{authenticated: true, id: "7", name: "alice"})
				c.Next()
			}

			engine := spanServer(tp, setUser, Middleware())
			engine.GET("/", func(c *gin.Context) {
				c.String(http.StatusOK, "ok")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Len(t, sr.Ended(), 1)
			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "7", attrs["enduser.id"].AsString())
			assert.Equal(t, "alice", attrs["enduser.username"].AsString())
		})
	})

	t.Run("will record a panic", func(t *testing.T) {
		t.Run("if the handler panics", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			engine := spanServer(tp, Middleware())
			engine.GET("/", func(c *gin.Context) {
				panic("kaput")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)

			require.Len(t, sr.Ended(), 1)
			span := sr.Ended()[0]
			assert.Equal(t, codes.Error, span.Status().Code)

			attrs := attrMap(span)
			assert.Equal(t, "kaput", attrs["exception.message"].AsString())
			assert.NotEmpty(t, attrs["exception.type"].AsString())
			assert.NotEmpty(t, span.Events())
		})
	})

	t.Run("will mark the span as an error", func(t *testing.T) {
		t.Run("if the response status is a server error", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			engine := spanServer(tp, Middleware())
			engine.GET("/", func(c *gin.Context) {
				c.String(http.StatusBadGateway, "bad")
			})

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			require.Len(t, sr.Ended(), 1)
			span := sr.Ended()[0]
			assert.Equal(t, codes.Error, span.Status().Code)

			attrs := attrMap(span)
			assert.Equal(t, int64(http.StatusBadGateway), attrs["http.status_code"].AsInt64())
		})
	})
}

func TestSetAttribute(t *testing.T) {
	t.Run("will stringify composite values", func(t *testing.T) {
		t.Run("if the value is a map", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			_, span := tp.Tracer("test").Start(t.Context(), "span")
			SetAttribute(span, "payload", map[string]string{"key": "value"})
			span.End()

			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "map[key:value]", attrs["payload"].AsString())
		})
	})

	t.Run("will keep scalar types", func(t *testing.T) {
		t.Run("if the value is a primitive", func(t *testing.T) {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

			_, span := tp.Tracer("test").Start(t.Context(), "span")
			SetAttribute(span, "s", "v")
			SetAttribute(span, "b", true)
			SetAttribute(span, "i", 7)
			SetAttribute(span, "f", 1.5)
			SetAttribute(span, "n", nil)
			span.End()

			attrs := attrMap(sr.Ended()[0])
			assert.Equal(t, "v", attrs["s"].AsString())
			assert.True(t, attrs["b"].AsBool())
			assert.Equal(t, int64(7), attrs["i"].AsInt64())
			assert.Equal(t, 1.5, attrs["f"].AsFloat64())
			assert.Equal(t, "", attrs["n"].AsString())
		})
	})
}

func TestClientIP(t *testing.T) {
	t.Run("will prefer the forwarded-for header", func(t *testing.T) {
		t.Run("if it contains multiple entries", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.1.1")
			req.RemoteAddr = "172.16.0.1:4321"

			assert.Equal(t, "10.0.0.1", ClientIP(req))
		})
	})

	t.Run("will fall back to the remote address", func(t *testing.T) {
		t.Run("if no forwarded-for header is present", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.2:1234"

			assert.Equal(t, "192.168.1.2", ClientIP(req))
		})
	})
}

func TestWarnOnce(t *testing.T) {
	t.Run("will log a single warning", func(t *testing.T) {
		t.Run("if multiple span mutations fail", func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			guard := &warnOnce{log: log}
			guard.do(func() { panic("first") })
			guard.do(func() { panic("second") })

			assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("failed to annotate request span")))
		})
	})

	t.Run("will not interrupt the caller", func(t *testing.T) {
		t.Run("if the wrapped func panics", func(t *testing.T) {
			guard := &warnOnce{log: slog.Default()}

			assert.NotPanics(t, func() {
				guard.do(func() { panic("kaput") })
			})
		})
	})
}
