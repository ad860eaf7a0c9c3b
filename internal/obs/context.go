package obs

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// routeLabel is shared by every middleware layer of one request. chi only
// knows the pattern after routing, so an empty label falls back to the live
// route context on read.
type routeLabel struct {
	mu      sync.Mutex
	pattern string
}

type routeLabelKey struct{}

func labelFrom(ctx context.Context) *routeLabel {
	l, _ := ctx.Value(routeLabelKey{}).(*routeLabel)
	return l
}

// WithRoutePattern pins the route label for the request. Outer middleware
// sharing the context see the pinned value as well.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if l := labelFrom(ctx); l != nil {
		l.mu.Lock()
		l.pattern = pattern
		l.mu.Unlock()
		return ctx
	}
	return context.WithValue(ctx, routeLabelKey{}, &routeLabel{pattern: pattern})
}

// RoutePatternFromContext returns the pinned label, else the pattern chi has
// matched so far.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if l := labelFrom(ctx); l != nil {
		l.mu.Lock()
		pattern := l.pattern
		l.mu.Unlock()
		if pattern != "" {
			return pattern
		}
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// RoutePatternMiddleware installs an empty route label so handlers can pin a
// coarser one, e.g. for mounted sub-muxes with unbounded paths.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if labelFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), routeLabelKey{}, &routeLabel{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
