// Package unzip transparently decompresses gzip-encoded request bodies
// so handlers downstream always read plain payloads.
package unzip

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/printmate/order-service/pkg/logger"
)

// gzipBody wraps the original request body and reads through a gzip
// decoder. Close releases both the decoder and the underlying body.
type gzipBody struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func newGzipBody(body io.ReadCloser) (*gzipBody, error) {
	zr, err := gzip.NewReader(body)
	if err != nil {
		return nil, fmt.Errorf("new gzip reader: %w", err)
	}

	return &gzipBody{body: body, zr: zr}, nil
}

func (g *gzipBody) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipBody) Close() error {
	if err := g.body.Close(); err != nil {
		return fmt.Errorf("close request body: %w", err)
	}
	return g.zr.Close()
}

// Middleware swaps the request body for a decompressing reader when the
// client declares a gzip Content-Encoding. A body that fails the gzip
// header check is the client's fault and is answered with 400.
func Middleware(logger logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
				gb, err := newGzipBody(r.Body)
				if err != nil {
					logger.Error(err)
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				r.Body = gb
				defer gb.Close()
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}
