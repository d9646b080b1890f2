package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxRequestIDLength = 128

// RequestIDMiddleware propagates X-Request-ID from the request, or generates a
// UUID when it is missing or unusable, and echoes it on the response.
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
				req.Header.Set(echo.HeaderXRequestID, id)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// CompressionMiddleware encodes responses with brotli when the client accepts
// "br" and falls back to gzip otherwise.
func CompressionMiddleware(skipper middleware.Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = middleware.DefaultSkipper
	}
	gzip := middleware.GzipWithConfig(middleware.GzipConfig{Skipper: skipper})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		gzipNext := gzip(next)
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}
			if !acceptsEncoding(c.Request().Header.Get(echo.HeaderAcceptEncoding), "br") {
				return gzipNext(c)
			}

			res := c.Response()
			res.Header().Add(echo.HeaderVary, echo.HeaderAcceptEncoding)
			bw := &brotliResponseWriter{ResponseWriter: res.Writer}
			res.Writer = bw
			defer func() {
				res.Writer = bw.ResponseWriter
				if err := bw.finish(); err != nil {
					c.Logger().Error(err)
				}
			}()
			return next(c)
		}
	}
}

// acceptsEncoding reports whether header lists encoding with a non-zero quality.
func acceptsEncoding(header, encoding string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), encoding) {
			continue
		}
		params = strings.TrimSpace(params)
		if !strings.HasPrefix(params, "q=") {
			return true
		}
		q, err := strconv.ParseFloat(strings.TrimPrefix(params, "q="), 64)
		return err == nil && q > 0
	}
	return false
}

// brotliResponseWriter defers the status line until the first body byte so
// that bodiless responses (204, HEAD) go out without a Content-Encoding.
type brotliResponseWriter struct {
	http.ResponseWriter
	bw          *brotli.Writer
	code        int
	wroteHeader bool
}

func (w *brotliResponseWriter) WriteHeader(code int) {
	if w.wroteHeader || w.bw != nil {
		return
	}
	w.code = code
	w.wroteHeader = true
}

func (w *brotliResponseWriter) Write(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if w.bw == nil {
		h := w.Header()
		h.Del(echo.HeaderContentLength)
		h.Set(echo.HeaderContentEncoding, "br")
		if h.Get(echo.HeaderContentType) == "" {
			h.Set(echo.HeaderContentType, http.DetectContentType(b))
		}
		code := w.code
		if !w.wroteHeader {
			code = http.StatusOK
		}
		w.ResponseWriter.WriteHeader(code)
		w.bw = brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)
	}
	return w.bw.Write(b)
}

func (w *brotliResponseWriter) Flush() {
	if w.bw != nil {
		_ = w.bw.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *brotliResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("response does not implement http.Hijacker")
}

func (w *brotliResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *brotliResponseWriter) finish() error {
	if w.bw != nil {
		return w.bw.Close()
	}
	if w.wroteHeader {
		w.ResponseWriter.WriteHeader(w.code)
	}
	return nil
}
