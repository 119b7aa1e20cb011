package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/your-org/edge-gateway/internal/config"
	"github.com/your-org/edge-gateway/internal/jsonapi"
	"github.com/your-org/edge-gateway/pkg/logger"
)

// includeMiddleware expands the include query parameter on successful
// GET responses by attaching related resources from the shared cache.
// Responses that are not parseable resource documents pass through
// unchanged.
type includeMiddleware struct {
	resolver *jsonapi.Resolver
	cfg      config.IncludeConfig
}

func newIncludeMiddleware(resolver *jsonapi.Resolver, cfg config.IncludeConfig) *includeMiddleware {
	return &includeMiddleware{resolver: resolver, cfg: cfg}
}

func (m *includeMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.cfg.Enabled || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		requested := parseIncludeParam(r.URL.Query().Get("include"), m.cfg.MaxIncludes)
		if len(requested) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		buf := newBufferingResponseWriter(w)
		next.ServeHTTP(buf, r)

		if buf.status != http.StatusOK || !isJSONResponse(buf.Header()) {
			buf.flush()
			return
		}

		body, changed := m.expand(r, buf.body.Bytes(), requested)
		if !changed {
			buf.flush()
			return
		}

		buf.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(buf.status)
		w.Write(body)
	})
}

// expand resolves the requested includes against the response document.
// The second return is false when the body is left as-is.
func (m *includeMiddleware) expand(r *http.Request, body []byte, requested []string) ([]byte, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}

	parsed := jsonapi.Document{Data: doc["data"]}
	primary, err := parsed.PrimaryResources()
	if err != nil || len(primary) == 0 {
		return nil, false
	}

	var existing []jsonapi.ResourceObject
	if raw, ok := doc["included"]; ok {
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, false
		}
	}

	resolved := m.resolver.ResolveIncludes(r.Context(), requested, primary)
	if len(resolved) == 0 {
		return nil, false
	}

	merged := mergeIncluded(existing, resolved)

	rawIncluded, err := json.Marshal(merged)
	if err != nil {
		logger.WithContext(r.Context()).Error("failed to marshal included resources", logger.Err(err))
		return nil, false
	}
	doc["included"] = rawIncluded

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, false
	}
	return out, true
}

// mergeIncluded appends resolved resources to the existing included
// list, skipping identifiers already present.
func mergeIncluded(existing, resolved []jsonapi.ResourceObject) []jsonapi.ResourceObject {
	seen := make(map[jsonapi.ResourceIdentifier]struct{}, len(existing))
	for _, res := range existing {
		seen[res.Identifier()] = struct{}{}
	}

	merged := existing
	for _, res := range resolved {
		if _, dup := seen[res.Identifier()]; dup {
			continue
		}
		seen[res.Identifier()] = struct{}{}
		merged = append(merged, res)
	}
	return merged
}

// parseIncludeParam splits a comma-separated include parameter,
// dropping empties and capping at the configured maximum.
func parseIncludeParam(raw string, max int) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		names = append(names, name)
		if max > 0 && len(names) >= max {
			break
		}
	}
	return names
}

func isJSONResponse(h http.Header) bool {
	ct := h.Get("Content-Type")
	return strings.Contains(ct, "json")
}

// bufferingResponseWriter captures the downstream response so the body
// can be rewritten before it reaches the client.
type bufferingResponseWriter struct {
	inner  http.ResponseWriter
	body   bytes.Buffer
	status int
}

func newBufferingResponseWriter(w http.ResponseWriter) *bufferingResponseWriter {
	return &bufferingResponseWriter{inner: w, status: http.StatusOK}
}

func (b *bufferingResponseWriter) Header() http.Header {
	return b.inner.Header()
}

func (b *bufferingResponseWriter) WriteHeader(status int) {
	b.status = status
}

func (b *bufferingResponseWriter) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

// flush writes the buffered response through unchanged.
func (b *bufferingResponseWriter) flush() {
	b.inner.WriteHeader(b.status)
	if b.body.Len() > 0 {
		b.inner.Write(b.body.Bytes())
	}
}
