package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/idgen/simple"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/migration"
	"github.com/avstrong/roomledger/internal/storage/memory"
	"github.com/avstrong/roomledger/internal/sweeper"
	"github.com/avstrong/roomledger/internal/transport/web"
)

const secret = "test-secret"

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

func newServer(t *testing.T, rateLimit string) http.Handler {
	t.Helper()

	ctx := context.Background()
	l := logger.Discard()
	db := memory.New(memory.Config{L: l})

	require.NoError(t, migration.Seed(ctx, l, db, now))

	clock := func() time.Time { return now }
	refs := simple.New()
	bookings := booking.New(l, db, refs, booking.WithClock(clock))
	inv := inventory.NewManager(l, db, refs, clock)
	sw := sweeper.New(sweeper.Conf{L: l, Interval: time.Hour, Concurrency: 2}, bookings)

	//nolint:exhaustruct
	srv, err := web.New(ctx, web.Conf{
		L:              l,
		Host:           "localhost",
		Port:           "0",
		RateLimit:      rateLimit,
		StaffJWTSecret: secret,
	}, bookings, inv, sw)
	require.NoError(t, err)

	return srv.Handler()
}

func staffToken(t *testing.T) string {
	t.Helper()

	token, err := web.IssueStaffToken(secret, "night-manager", time.Hour, time.Now())
	require.NoError(t, err)

	return token
}

type call struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}

	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func seaviewBooking(rooms int) map[string]any {
	return map[string]any{
		"property_id":  "seaview",
		"room_type_id": "deluxe",
		"check_in":     "2026-03-20",
		"check_out":    "2026-03-22",
		"rooms":        rooms,
		"guests":       rooms,
		"guest":        map[string]string{"name": "Grace Hopper", "email": "grace@example.com"},
	}
}

func TestLiveness(t *testing.T) {
	h := newServer(t, "")

	rec := do(t, h, call{method: http.MethodGet, path: "/liveness"}) //nolint:exhaustruct
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAvailability(t *testing.T) {
	h := newServer(t, "")

	//nolint:exhaustruct
	rec := do(t, h, call{
		method: http.MethodGet,
		path:   "/api/v1/availability?property_id=seaview&room_type_id=deluxe&check_in=2026-03-10&check_out=2026-03-12&rooms=2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[inventory.Result](t, rec)
	assert.Equal(t, 2, res.Nights)
	assert.Equal(t, 10, res.MinAvailable)
	assert.InDelta(t, 720, res.TotalPrice, 0.001)
	assert.Len(t, res.PerNight, 2)
}

func TestAvailabilityErrors(t *testing.T) {
	h := newServer(t, "")

	tests := []struct {
		name string
		path string
		code int
	}{
		{
			name: "bad date",
			path: "/api/v1/availability?property_id=seaview&room_type_id=deluxe&check_in=tomorrow&check_out=2026-03-12",
			code: http.StatusBadRequest,
		},
		{
			name: "reversed stay",
			path: "/api/v1/availability?property_id=seaview&room_type_id=deluxe&check_in=2026-03-12&check_out=2026-03-10",
			code: http.StatusBadRequest,
		},
		{
			name: "unknown room type",
			path: "/api/v1/availability?property_id=seaview&room_type_id=attic&check_in=2026-03-10&check_out=2026-03-12",
			code: http.StatusNotFound,
		},
		{
			name: "not enough rooms",
			path: "/api/v1/availability?property_id=seaview&room_type_id=suite&check_in=2026-03-10&check_out=2026-03-12&rooms=4",
			code: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, call{method: http.MethodGet, path: tt.path}) //nolint:exhaustruct
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestBookingLifecycle(t *testing.T) {
	h := newServer(t, "")

	//nolint:exhaustruct
	rec := do(t, h, call{
		method:  http.MethodPost,
		path:    "/api/v1/bookings",
		body:    seaviewBooking(1),
		headers: map[string]string{"Idempotency-Key": "order-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[booking.CreateResult](t, rec)
	ref := created.Booking.Reference
	assert.True(t, strings.HasPrefix(ref, "SEA-"), ref)
	assert.Equal(t, booking.StatusPreConfirmed, created.Booking.Status)

	//nolint:exhaustruct
	replay := do(t, h, call{
		method:  http.MethodPost,
		path:    "/api/v1/bookings",
		body:    seaviewBooking(1),
		headers: map[string]string{"Idempotency-Key": "order-1"},
	})
	require.Equal(t, http.StatusOK, replay.Code, replay.Body.String())
	assert.Equal(t, ref, decode[booking.CreateResult](t, replay).Booking.Reference)

	//nolint:exhaustruct
	rec = do(t, h, call{
		method: http.MethodPost,
		path:   "/api/v1/bookings/" + ref + "/payments",
		body:   map[string]any{"amount": 360, "method": "card"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	paid := decode[booking.PaymentResult](t, rec)
	assert.Equal(t, booking.StatusConfirmed, paid.Booking.Status)
	assert.Equal(t, booking.PaymentFullyPaid, paid.Booking.PaymentStatus)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/v1/bookings/" + ref}) //nolint:exhaustruct
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[booking.Details](t, rec).Payments, 1)

	rec = do(t, h, call{method: http.MethodGet, path: "/api/v1/bookings/" + ref + "/cancellation"}) //nolint:exhaustruct
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 100, decode[booking.Quote](t, rec).RefundPercentage, 0.001, "19 days out under the strict policy")

	//nolint:exhaustruct
	rec = do(t, h, call{
		method: http.MethodPost,
		path:   "/api/v1/bookings/" + ref + "/cancellation",
		body:   map[string]string{"reason": "plans changed"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cancelled := decode[booking.CancellationResult](t, rec)
	assert.Equal(t, booking.StatusCancelled, cancelled.Booking.Status)
	assert.Equal(t, booking.EffectRestored, cancelled.Effect)

	rec = do(t, h, call{method: http.MethodPost, path: "/api/v1/bookings/" + ref + "/cancellation"}) //nolint:exhaustruct
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateBookingErrors(t *testing.T) {
	h := newServer(t, "")

	tooFar := seaviewBooking(1)
	tooFar["property_id"] = "citylodge"
	tooFar["room_type_id"] = "standard"
	tooFar["check_in"] = "2026-08-01"
	tooFar["check_out"] = "2026-08-03"

	noGuest := seaviewBooking(1)
	noGuest["guest"] = map[string]string{}

	tests := []struct {
		name    string
		body    any
		headers map[string]string
		code    int
	}{
		{name: "advance limit", body: tooFar, code: http.StatusUnprocessableEntity},
		{name: "missing guest", body: noGuest, code: http.StatusBadRequest},
		{name: "not json", body: "{", code: http.StatusBadRequest},
		{
			name:    "long idempotency key",
			body:    seaviewBooking(1),
			headers: map[string]string{"Idempotency-Key": strings.Repeat("k", booking.MaxIdempotencyKeyLength+1)},
			code:    http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, call{method: http.MethodPost, path: "/api/v1/bookings", body: tt.body, headers: tt.headers})
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestUnknownBooking(t *testing.T) {
	h := newServer(t, "")

	rec := do(t, h, call{method: http.MethodGet, path: "/api/v1/bookings/SEA-20260320-9999"}) //nolint:exhaustruct
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRequiresStaffToken(t *testing.T) {
	h := newServer(t, "")

	rec := do(t, h, call{method: http.MethodPost, path: "/api/v1/admin/sweeps"}) //nolint:exhaustruct
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	wrong, err := web.IssueStaffToken("another-secret", "intruder", time.Hour, time.Now())
	require.NoError(t, err)

	//nolint:exhaustruct
	rec = do(t, h, call{
		method:  http.MethodPost,
		path:    "/api/v1/admin/sweeps",
		headers: map[string]string{"Authorization": "Bearer " + wrong},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	//nolint:exhaustruct
	rec = do(t, h, call{
		method:  http.MethodPost,
		path:    "/api/v1/admin/sweeps",
		headers: map[string]string{"Authorization": "Bearer " + staffToken(t)},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"results":[],"failed":0}`, rec.Body.String())
}

func TestAdminBlocks(t *testing.T) {
	h := newServer(t, "")
	auth := map[string]string{"Authorization": "Bearer " + staffToken(t)}

	rec := do(t, h, call{
		method:  http.MethodPost,
		path:    "/api/v1/admin/blocks",
		body:    map[string]any{"property_id": "seaview", "room_type_id": "suite", "date": "2026-03-15", "rooms": 2, "reason": "maintenance"},
		headers: auth,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	block := decode[inventory.Block](t, rec)
	assert.Equal(t, "night-manager", block.BlockedBy)
	assert.Equal(t, inventory.BlockActive, block.Status)

	//nolint:exhaustruct
	rec = do(t, h, call{
		method: http.MethodGet,
		path:   "/api/v1/availability?property_id=seaview&room_type_id=suite&check_in=2026-03-15&check_out=2026-03-16&rooms=2",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "two of three suites are blocked")

	//nolint:exhaustruct
	rec = do(t, h, call{
		method:  http.MethodGet,
		path:    "/api/v1/admin/inventory?property_id=seaview&room_type_id=suite&check_in=2026-03-15&check_out=2026-03-16",
		headers: auth,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows := decode[[]inventory.ReportRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Blocked)
	assert.Equal(t, 1, rows[0].Sellable)

	//nolint:exhaustruct
	rec = do(t, h, call{method: http.MethodDelete, path: "/api/v1/admin/blocks/" + block.Reference, headers: auth})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	//nolint:exhaustruct
	rec = do(t, h, call{method: http.MethodDelete, path: "/api/v1/admin/blocks/" + block.Reference, headers: auth})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminInventory(t *testing.T) {
	h := newServer(t, "")
	auth := map[string]string{"Authorization": "Bearer " + staffToken(t)}

	//nolint:exhaustruct
	rec := do(t, h, call{
		method: http.MethodPut,
		path:   "/api/v1/admin/inventory/price",
		body: map[string]any{
			"property_id": "seaview", "room_type_id": "deluxe",
			"check_in": "2026-03-10", "check_out": "2026-03-11", "price": 250,
		},
		headers: auth,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"nights":1}`, rec.Body.String())

	//nolint:exhaustruct
	rec = do(t, h, call{
		method: http.MethodPost,
		path:   "/api/v1/admin/inventory",
		body: map[string]any{
			"property_id": "seaview", "room_type_id": "deluxe",
			"check_in": "2026-08-28", "check_out": "2026-09-04",
		},
		headers: auth,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"nights":7}`, rec.Body.String(), "the seeded window ends before 2026-08-28")
}

func TestRateLimit(t *testing.T) {
	h := newServer(t, "2-M")

	path := "/api/v1/availability?property_id=seaview&room_type_id=deluxe&check_in=2026-03-10&check_out=2026-03-11"

	for range 2 {
		rec := do(t, h, call{method: http.MethodGet, path: path}) //nolint:exhaustruct
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := do(t, h, call{method: http.MethodGet, path: path}) //nolint:exhaustruct
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, call{method: http.MethodGet, path: "/liveness"}) //nolint:exhaustruct
	assert.Equal(t, http.StatusNoContent, rec.Code, "liveness is not limited")
}
