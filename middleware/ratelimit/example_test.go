package ratelimit_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"forum-admission/middleware/ratelimit"
	"forum-admission/middleware/ratelimit/application"
	"forum-admission/middleware/ratelimit/infra"
)

func ExampleGuard_Check() {
	rule, err := application.Normalize("password:reset", application.FixedWindowOptions{Limit: 2, WindowMs: 3_600_000})
	if err != nil {
		panic(err)
	}

	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	opts := ratelimit.StoreOptions(infra.NewStore(infra.WithClock(clock)))
	guard := ratelimit.NewGuard(opts)

	for range 3 {
		r := httptest.NewRequest(http.MethodPost, "/password/reset", nil)
		r.RemoteAddr = "203.0.113.7:4321"
		w := httptest.NewRecorder()

		ok := guard.Check(w, r, rule)
		fmt.Printf("%v %d remaining=%s retry=%q\n", ok, w.Code, w.Header().Get("X-RateLimit-Remaining"), w.Header().Get("Retry-After"))
	}
	// Output:
	// true 200 remaining=1 retry=""
	// true 200 remaining=0 retry=""
	// false 429 remaining=0 retry="3600"
}
