package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/niti14-code/FreeWheel/internal/auth"
	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/handler"
	"github.com/niti14-code/FreeWheel/internal/ride/repository"
	"github.com/niti14-code/FreeWheel/internal/ride/service"
)

const testSecret = "handler-test-secret"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	rides := repository.NewMemoryRideStore()
	bookings := repository.NewMemoryBookingStore()
	arb := service.NewArbitrator(rides, bookings, nil, nil)
	rideSvc := service.NewRides(rides, nil, nil, nil)
	srv := httptest.NewServer(handler.NewHTTP(arb, rideSvc, testSecret).Router())
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, identity domain.Identity) string {
	t.Helper()
	claims := auth.Claims{
		Role: string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: identity.ID.String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, srv *httptest.Server, identity domain.Identity, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, identity))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouterRejectsMissingToken(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/v1/bookings/mine")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBookingFlowOverHTTP(t *testing.T) {
	srv := newServer(t)
	provider := domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}
	rider := domain.Identity{ID: uuid.New(), Role: domain.RoleSeeker}

	resp := do(t, srv, provider, http.MethodPost, "/v1/rides", map[string]any{"seats": 1, "cost_per_seat": 50})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ride := decode[domain.Ride](t, resp)

	resp = do(t, srv, rider, http.MethodPost, "/v1/bookings", map[string]string{"ride_id": ride.ID.String()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	booking := decode[domain.Booking](t, resp)
	require.Equal(t, domain.BookingPending, booking.Status)

	// Ride is now full.
	resp = do(t, srv, rider, http.MethodPost, "/v1/bookings", map[string]string{"ride_id": ride.ID.String()})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, srv, provider, http.MethodPost, fmt.Sprintf("/v1/bookings/%s/respond", booking.ID), map[string]string{"decision": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode[domain.Booking](t, resp)
	require.Equal(t, domain.BookingAccepted, decided.Status)

	resp = do(t, srv, rider, http.MethodGet, "/v1/bookings/mine", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[[]domain.Booking](t, resp)
	require.Len(t, mine, 1)
	require.Equal(t, domain.BookingAccepted, mine[0].Status)
}

func TestErrorKindStatusMapping(t *testing.T) {
	srv := newServer(t)
	provider := domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}
	rider := domain.Identity{ID: uuid.New(), Role: domain.RoleSeeker}

	// Forbidden: pure provider requesting a seat.
	resp := do(t, srv, provider, http.MethodPost, "/v1/bookings", map[string]string{"ride_id": uuid.NewString()})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// NotFound: seeker requesting a missing ride.
	resp = do(t, srv, rider, http.MethodPost, "/v1/bookings", map[string]string{"ride_id": uuid.NewString()})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Forbidden: non-owner listing bookings for a ride.
	resp = do(t, srv, provider, http.MethodPost, "/v1/rides", map[string]any{"seats": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ride := decode[domain.Ride](t, resp)

	other := domain.Identity{ID: uuid.New(), Role: domain.RoleProvider}
	resp = do(t, srv, other, http.MethodGet, fmt.Sprintf("/v1/rides/%s/bookings", ride.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// InvalidState: re-deciding a terminal booking.
	rsp := do(t, srv, rider, http.MethodPost, "/v1/bookings", map[string]string{"ride_id": ride.ID.String()})
	require.Equal(t, http.StatusCreated, rsp.StatusCode)
	booking := decode[domain.Booking](t, rsp)

	rsp = do(t, srv, provider, http.MethodPost, fmt.Sprintf("/v1/bookings/%s/respond", booking.ID), map[string]string{"decision": "rejected"})
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	rsp.Body.Close()

	rsp = do(t, srv, provider, http.MethodPost, fmt.Sprintf("/v1/bookings/%s/respond", booking.ID), map[string]string{"decision": "accepted"})
	require.Equal(t, http.StatusBadRequest, rsp.StatusCode)
	rsp.Body.Close()
}
