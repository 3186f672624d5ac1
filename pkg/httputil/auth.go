package httputil

import (
	"crypto/subtle"
	"strings"

	"github.com/valyala/fasthttp"
)

// BearerAuth returns middleware that requires the given static bearer
// token on every request. An empty token disables the check.
func BearerAuth(token string) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		if token == "" {
			return next
		}
		return func(ctx *fasthttp.RequestCtx) {
			header := string(ctx.Request.Header.Peek("Authorization"))
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				WriteErrorResponse(ctx, "unauthorized", fasthttp.StatusUnauthorized)
				return
			}
			next(ctx)
		}
	}
}

// ConsoleID extracts the console instance id header, empty when absent
func ConsoleID(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek("X-Console-ID"))
}
