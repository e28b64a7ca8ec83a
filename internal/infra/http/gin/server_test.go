package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"habita/internal/app/dto"
	"habita/internal/app/handlers/reservations"
	"habita/internal/app/middleware"
	"habita/internal/app/outbox"
	"habita/internal/app/services/auth"
	domainpricing "habita/internal/domain/pricing"
	"habita/internal/infra/fixtures"
	"habita/internal/infra/notify"
	"habita/internal/infra/obs"
	"habita/internal/infra/security"
	"habita/internal/infra/storage/memory"
)

const testSecret = "s3cret"

type testServer struct {
	router *gin.Engine
	fanout *outbox.Fanout
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	cache := memory.NewOccupancyCache()
	feed := notify.NewMemoryFeed(0)
	fanout := outbox.NewFanout(logger,
		reservations.NotificationRelay{Notifier: feed},
		reservations.CacheInvalidator{Cache: cache},
	)
	relay := memory.NewOutbox(fanout)
	factory := memory.Factory{Store: memory.NewStore(relay)}

	authSvc := &auth.Service{Users: memory.NewUserRepository(), Keys: security.BcryptHasher{Cost: 4}, Logger: logger}
	actors, props := fixtures.Demo()
	for i := range actors {
		actors[i].Secret = testSecret
	}
	ctx := context.Background()
	if err := fixtures.SeedActors(ctx, authSvc, actors, security.SecretGenerator{}, now, logger); err != nil {
		t.Fatalf("seed actors: %v", err)
	}
	if err := fixtures.SeedProperties(ctx, factory, props, now); err != nil {
		t.Fatalf("seed properties: %v", err)
	}

	buses := reservations.Register(reservations.Options{
		Deps: reservations.Deps{
			UoWFactory: factory,
			Pricing:    domainpricing.Standard{},
			Encoder:    outbox.JSONEventEncoder{},
			Now:        func() time.Time { return now },
			Logger:     logger,
		},
		Cache:          cache,
		Idempotency:    memory.NewIdempotencyStore(time.Hour),
		IdempotencyTTL: time.Hour,
		Flusher:        relay,
		Retry:          middleware.RetryPolicy{MaxAttempts: 5},
	})

	router := NewRouter(nil, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Reservations:   &ReservationHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Notifications:  &NotificationHandler{Feed: feed, Logger: logger},
		AuthMiddleware: AuthMiddleware{Service: authSvc, Logger: logger}.Handle,
		RateLimiter:    NewRateLimiter(1000, 1000, logger),
	})
	return &testServer{router: router, fanout: fanout}
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("Authorization", "Bearer "+actor+"."+testSecret)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, actor, checkIn, checkOut string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/v1/reservations", actor, map[string]any{
		"property_id": "prop-1",
		"checkin":     checkIn,
		"checkout":    checkOut,
		"guest_count": 2,
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestCreateReservationPricesStay(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.create(t, "guest-1", "2026-03-01", "2026-03-05")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[dto.Reservation](t, rec)
	if res.Nights != 4 || res.TotalAmount.Amount != 40000 {
		t.Fatalf("unexpected pricing: nights=%d total=%+v", res.Nights, res.TotalAmount)
	}
	if res.Status != "pending" || res.PaymentStatus != "pending" || !res.IsActive {
		t.Fatalf("unexpected lifecycle: %+v", res)
	}
	if res.Property == nil || res.Property.HostID != "host-1" {
		t.Fatalf("expected property snapshot, got %+v", res.Property)
	}
}

func TestOverlapIsRejectedAndBackToBackAllowed(t *testing.T) {
	srv := newTestServer(t)

	if rec := srv.create(t, "guest-1", "2026-03-01", "2026-03-05"); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", rec.Code, rec.Body.String())
	}
	rec := srv.create(t, "guest-2", "2026-03-04", "2026-03-07")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode[errorBody](t, rec); body.Kind != "conflict" {
		t.Fatalf("expected conflict kind, got %+v", body)
	}
	if rec := srv.create(t, "guest-2", "2026-03-05", "2026-03-07"); rec.Code != http.StatusCreated {
		t.Fatalf("back-to-back stay should be accepted, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/properties/prop-1/occupied-dates", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("occupied dates: %d", rec.Code)
	}
	occupied := decode[dto.OccupiedDates](t, rec)
	if len(occupied.Dates) != 6 || occupied.ActiveReservations != 2 {
		t.Fatalf("unexpected occupancy: %+v", occupied)
	}
}

func TestConcurrentCreatesAdmitExactlyOne(t *testing.T) {
	srv := newTestServer(t)

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := "guest-1"
			if i%2 == 1 {
				actor = "guest-2"
			}
			codes[i] = srv.create(t, actor, "2026-04-10", "2026-04-12").Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one reservation, got %d (%v)", created, codes)
	}
}

func TestUpdateExcludesOwnReservation(t *testing.T) {
	srv := newTestServer(t)
	created := decode[dto.Reservation](t, srv.create(t, "guest-1", "2026-03-01", "2026-03-05"))

	rec := srv.do(t, http.MethodPatch, "/api/v1/reservations/"+created.ID, "guest-1", map[string]any{"checkout": "2026-03-06"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[dto.Reservation](t, rec)
	if updated.Nights != 5 || updated.TotalAmount.Amount != 50000 || updated.CheckOut != "2026-03-06" {
		t.Fatalf("unexpected update: %+v", updated)
	}
}

func TestHostEditsOwnStayOnOwnProperty(t *testing.T) {
	srv := newTestServer(t)
	created := decode[dto.Reservation](t, srv.create(t, "host-1", "2026-04-01", "2026-04-03"))

	rec := srv.do(t, http.MethodPatch, "/api/v1/reservations/"+created.ID, "host-1", map[string]any{"checkout": "2026-04-04", "comment": "late arrival"})
	if rec.Code != http.StatusOK {
		t.Fatalf("host booking their own property may edit the stay, got %d: %s", rec.Code, rec.Body.String())
	}
	if updated := decode[dto.Reservation](t, rec); updated.Nights != 3 || updated.Comment != "late arrival" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	other := decode[dto.Reservation](t, srv.create(t, "guest-1", "2026-05-01", "2026-05-03"))
	rec = srv.do(t, http.MethodPatch, "/api/v1/reservations/"+other.ID, "host-1", map[string]any{"checkout": "2026-05-04"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("host must not edit a guest's stay, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGuestCannotChangePaymentStatus(t *testing.T) {
	srv := newTestServer(t)
	created := decode[dto.Reservation](t, srv.create(t, "guest-1", "2026-03-01", "2026-03-05"))

	rec := srv.do(t, http.MethodPatch, "/api/v1/reservations/"+created.ID, "guest-1", map[string]any{"payment_status": "paid"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPatch, "/api/v1/reservations/"+created.ID, "host-1", map[string]any{"payment_status": "paid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("host should update payment, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOccupiedDatesFollowWritesImmediately(t *testing.T) {
	srv := newTestServer(t)
	occupied := func() []string {
		t.Helper()
		rec := srv.do(t, http.MethodGet, "/api/v1/properties/prop-1/occupied-dates", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("occupied dates: %d %s", rec.Code, rec.Body.String())
		}
		return decode[dto.OccupiedDates](t, rec).Dates
	}
	if dates := occupied(); len(dates) != 0 {
		t.Fatalf("expected an empty calendar, got %v", dates)
	}

	created := decode[dto.Reservation](t, srv.create(t, "guest-1", "2026-03-01", "2026-03-05"))
	if dates := occupied(); len(dates) != 4 {
		t.Fatalf("new booking must show up at once, got %v", dates)
	}
	for _, status := range []string{"accepted", "confirmed"} {
		if rec := srv.do(t, http.MethodPost, "/api/v1/reservations/"+created.ID+"/status", "host-1", map[string]string{"status": status}); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", status, rec.Code, rec.Body.String())
		}
	}
	if dates := occupied(); len(dates) != 4 {
		t.Fatalf("confirmed stay must stay occupied, got %v", dates)
	}

	if rec := srv.do(t, http.MethodPost, "/api/v1/reservations/"+created.ID+"/status", "guest-1", map[string]string{"status": "cancelled"}); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if dates := occupied(); len(dates) != 0 {
		t.Fatalf("cancelled stay must be released at once, got %v", dates)
	}
	if rec := srv.create(t, "guest-2", "2026-03-01", "2026-03-05"); rec.Code != http.StatusCreated {
		t.Fatalf("released dates should be bookable, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGuestMaySetDiscount(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{
		"property_id": "prop-1", "checkin": "2026-03-01", "checkout": "2026-03-04", "guest_count": 1, "discount_percent": 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if res := decode[dto.Reservation](t, rec); res.TotalAmount.Amount != 27000 {
		t.Fatalf("expected discounted total 27000, got %+v", res.TotalAmount)
	}
}

func TestIdempotencyKeyReplaysCreate(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"property_id": "prop-2", "checkin": "2026-05-01", "checkout": "2026-05-03", "guest_count": 1}

	first := srv.do(t, http.MethodPost, "/api/v1/reservations", "guest-1", body, "Idempotency-Key", "abc")
	second := srv.do(t, http.MethodPost, "/api/v1/reservations", "guest-1", body, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("unexpected codes %d / %d: %s", first.Code, second.Code, second.Body.String())
	}
	if a, b := decode[dto.Reservation](t, first), decode[dto.Reservation](t, second); a.ID != b.ID {
		t.Fatalf("expected replay of %s, got %s", a.ID, b.ID)
	}
}

func TestIdempotencyKeyReusedForDifferentBody(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"property_id": "prop-2", "checkin": "2026-05-01", "checkout": "2026-05-03", "guest_count": 1}
	if rec := srv.do(t, http.MethodPost, "/api/v1/reservations", "guest-1", body, "Idempotency-Key", "k-9"); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	body["checkout"] = "2026-05-04"
	rec := srv.do(t, http.MethodPost, "/api/v1/reservations", "guest-1", body, "Idempotency-Key", "k-9")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequestErrors(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name   string
		method string
		path   string
		actor  string
		body   any
		want   int
	}{
		{"anonymous create", http.MethodPost, "/api/v1/reservations", "", map[string]any{"property_id": "prop-1"}, http.StatusUnauthorized},
		{"bad date", http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{"property_id": "prop-1", "checkin": "03/01/2026", "checkout": "2026-03-05", "guest_count": 1}, http.StatusBadRequest},
		{"reversed range", http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{"property_id": "prop-1", "checkin": "2026-03-05", "checkout": "2026-03-01", "guest_count": 1}, http.StatusBadRequest},
		{"checkin in the past", http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{"property_id": "prop-1", "checkin": "2025-12-01", "checkout": "2025-12-03", "guest_count": 1}, http.StatusBadRequest},
		{"discount above 100", http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{"property_id": "prop-1", "checkin": "2026-03-01", "checkout": "2026-03-03", "guest_count": 1, "discount_percent": 150}, http.StatusBadRequest},
		{"unknown property", http.MethodPost, "/api/v1/reservations", "guest-1", map[string]any{"property_id": "missing", "checkin": "2026-03-01", "checkout": "2026-03-03", "guest_count": 1}, http.StatusNotFound},
		{"unknown reservation", http.MethodGet, "/api/v1/reservations/nope", "guest-1", nil, http.StatusNotFound},
		{"rebuild by guest", http.MethodPost, "/api/v1/admin/properties/prop-1/availability/rebuild", "guest-1", nil, http.StatusForbidden},
		{"rebuild by admin", http.MethodPost, "/api/v1/admin/properties/prop-1/availability/rebuild", "admin", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, tc.method, tc.path, tc.actor, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestInvalidAPIKeyIsRejected(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer guest-1.wrong")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListVisibilityAndNotifications(t *testing.T) {
	srv := newTestServer(t)
	srv.create(t, "guest-1", "2026-03-01", "2026-03-03")
	srv.create(t, "guest-2", "2026-03-10", "2026-03-12")
	srv.fanout.Wait()

	mine := decode[dto.ReservationCollection](t, srv.do(t, http.MethodGet, "/api/v1/reservations", "guest-1", nil))
	if mine.Total != 1 || mine.Items[0].UserID != "guest-1" {
		t.Fatalf("guest should only see own reservations: %+v", mine)
	}
	hosted := decode[dto.ReservationCollection](t, srv.do(t, http.MethodGet, "/api/v1/reservations", "host-1", nil))
	if hosted.Total != 2 {
		t.Fatalf("host should see both reservations, got %d", hosted.Total)
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/me/notifications", "guest-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("notifications: %d", rec.Code)
	}
	feed := decode[struct {
		Items []struct {
			Event  string `json:"event"`
			UserID string `json:"user_id"`
		} `json:"items"`
	}](t, rec)
	if len(feed.Items) == 0 || feed.Items[0].UserID != "guest-1" {
		t.Fatalf("expected a notification for guest-1, got %+v", feed.Items)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(0.001, 2, nil)
	router := gin.New()
	router.GET("/ping", limiter.Handle, func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestStatusForKinds(t *testing.T) {
	if got := StatusFor(io.EOF); got != http.StatusInternalServerError {
		t.Fatalf("unclassified errors map to 500, got %d", got)
	}
}
