// Package httpmiddleware provides the HTTP middleware stack for the cart
// service: panic recovery, request IDs, CORS, rate limiting, and
// request-scoped logging.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware in the list becomes the
// outermost one, so Wrap(h, a, b) serves requests as a(b(h)).
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
