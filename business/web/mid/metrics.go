package mid

import (
	"context"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/ardanlabs/powchain/foundation/web"
)

// Metrics updates program counters.
func Metrics(m *metrics.Metrics) web.Middleware {

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			started := time.Now()

			// Call the next handler.
			err := handler(ctx, w, r)

			// Errors sits above this middleware, so a failed request has no
			// status yet and is counted as an error instead.
			if err != nil {
				m.AddError(r.Method)
				return err
			}

			status := http.StatusOK
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				status = v.StatusCode
			}
			m.AddRequest(r.Method, status, time.Since(started))

			return nil
		}

		return h
	}

	return mw
}
