package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/niti14-code/FreeWheel/internal/auth"
	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/service"
)

// HTTP exposes ride and booking endpoints. Every route requires a
// resolved identity; the arbitration error kinds map onto distinct
// status codes so clients can tell them apart.
type HTTP struct {
	arbitrator *service.Arbitrator
	rides      *service.Rides
	jwtSecret  string
}

// NewHTTP constructs the handler.
func NewHTTP(arbitrator *service.Arbitrator, rides *service.Rides, jwtSecret string) *HTTP {
	return &HTTP{arbitrator: arbitrator, rides: rides, jwtSecret: jwtSecret}
}

// Router builds the chi router with all endpoints and middlewares.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(auth.Middleware(h.jwtSecret))

	r.Post("/v1/rides", h.publishRide)
	r.Get("/v1/rides/search", h.searchRides)
	r.Get("/v1/rides/mine", h.listMyRides)
	r.Get("/v1/rides/{id}", h.getRide)
	r.Post("/v1/rides/{id}/cancel", h.cancelRide)
	r.Get("/v1/rides/{id}/bookings", h.listForRide)

	r.Post("/v1/bookings", h.requestBooking)
	r.Post("/v1/bookings/{id}/respond", h.respondToBooking)
	r.Get("/v1/bookings/mine", h.listForSeeker)
	r.Get("/v1/bookings/requests", h.listForProvider)

	return r
}

type publishRideRequest struct {
	Pickup      domain.GeoPoint `json:"pickup"`
	PickupLabel string          `json:"pickup_label"`
	Drop        domain.GeoPoint `json:"drop"`
	DropLabel   string          `json:"drop_label"`
	DepartAt    time.Time       `json:"depart_at"`
	Seats       int             `json:"seats"`
	CostPerSeat int64           `json:"cost_per_seat"`
}

func (h *HTTP) publishRide(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload publishRideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ride, err := h.rides.PublishRide(r.Context(), identity, service.PublishRideInput{
		Pickup:      payload.Pickup,
		PickupLabel: payload.PickupLabel,
		Drop:        payload.Drop,
		DropLabel:   payload.DropLabel,
		DepartAt:    payload.DepartAt,
		Seats:       payload.Seats,
		CostPerSeat: payload.CostPerSeat,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (h *HTTP) searchRides(w http.ResponseWriter, r *http.Request) {
	origin := domain.GeoPoint{
		Lat: parseQueryFloat(r, "lat"),
		Lng: parseQueryFloat(r, "lng"),
	}
	radiusKM := parseQueryFloat(r, "radius_km")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = &parsed
	}

	rides, err := h.rides.SearchRides(r.Context(), origin, radiusKM, date, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (h *HTTP) listMyRides(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	rides, err := h.rides.ListMyRides(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (h *HTTP) getRide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	ride, err := h.rides.GetRide(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (h *HTTP) cancelRide(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	ride, err := h.rides.CancelRide(r.Context(), identity, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

type requestBookingRequest struct {
	RideID string `json:"ride_id"`
}

func (h *HTTP) requestBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload requestBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rideID, err := uuid.Parse(payload.RideID)
	if err != nil {
		http.Error(w, "invalid ride_id", http.StatusBadRequest)
		return
	}
	booking, err := h.arbitrator.RequestBooking(r.Context(), identity, rideID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

type respondRequest struct {
	Decision string `json:"decision"`
}

func (h *HTTP) respondToBooking(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload respondRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	booking, err := h.arbitrator.RespondToBooking(r.Context(), identity, bookingID, domain.BookingStatus(payload.Decision))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *HTTP) listForSeeker(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	bookings, err := h.arbitrator.ListForSeeker(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *HTTP) listForProvider(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	bookings, err := h.arbitrator.ListForProvider(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *HTTP) listForRide(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	rideID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	bookings, err := h.arbitrator.ListForRide(r.Context(), identity, rideID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseQueryFloat(r *http.Request, key string) float64 {
	value, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return value
}
