package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mongoadapter "github.com/turfconnect/slot-reservations/internal/adapters/mongo"
	"github.com/turfconnect/slot-reservations/internal/domain"
	"github.com/turfconnect/slot-reservations/internal/generator"
	"github.com/turfconnect/slot-reservations/internal/identity"
	"github.com/turfconnect/slot-reservations/internal/idempotency"
	"github.com/turfconnect/slot-reservations/internal/observability"
	"github.com/turfconnect/slot-reservations/internal/reservation"
)

type Handlers struct {
	reservations *reservation.Service
	generators   *generator.Service
	venues       *mongoadapter.VenueCatalog
	idemp        *idempotency.Idempotency
	logger       observability.Logger
}

func NewHandlers(reservations *reservation.Service, generators *generator.Service, venues *mongoadapter.VenueCatalog, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		reservations: reservations,
		generators:   generators,
		venues:       venues,
		idemp:        idemp,
		logger:       logger,
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSlotsNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSlotUnavailable),
		errors.Is(err, domain.ErrDuplicateSlot),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrTooManySlots),
		errors.Is(err, domain.ErrHeterogeneousSelection):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrBookingExpired):
		http.Error(w, "booking expired, restart the reservation", http.StatusGone)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func slotResponse(s domain.Slot) map[string]interface{} {
	resp := map[string]interface{}{
		"id":         s.ID,
		"venue_id":   s.VenueID,
		"date":       s.Date.Format("2006-01-02"),
		"start_time": domain.FormatClock(s.StartMinute),
		"end_time":   domain.FormatClock(s.EndMinute),
		"price":      s.Price,
		"label":      s.Label,
		"status":     s.Status,
		"is_booked":  s.IsBooked(),
	}
	if s.HoldExpiry != nil {
		resp["hold_expiry"] = s.HoldExpiry.Format(time.RFC3339)
	}
	return resp
}

func bookingResponse(b domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":   b.ID,
		"venue_id":     b.VenueID,
		"date":         b.Date.Format("2006-01-02"),
		"slot_ids":     b.SlotIDs,
		"total_amount": b.TotalAmount,
		"status":       b.Status,
		"expires_at":   b.ExpiresAt.Format(time.RFC3339),
	}
}

func (h *Handlers) ListSlots(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuid.Parse(chi.URLParam(r, "venueID"))
	if err != nil {
		http.Error(w, "invalid venue id", http.StatusBadRequest)
		return
	}
	if _, err := h.venues.GetApprovedVenue(r.Context(), venueID); err != nil {
		http.Error(w, "venue not found", http.StatusNotFound)
		return
	}

	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		date = &d
	}

	slots, err := h.reservations.ListSlots(r.Context(), venueID, date)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": out})
}

// ownedVenue resolves the venue and checks the caller owns it.
func (h *Handlers) ownedVenue(r *http.Request, venueID uuid.UUID) error {
	p, err := identity.Owner(r.Context())
	if err != nil {
		return err
	}
	venue, err := h.venues.GetVenue(r.Context(), venueID)
	if err != nil {
		return err
	}
	if venue.OwnerID != p.UserID {
		return domain.ErrForbidden
	}
	return nil
}

func (h *Handlers) CreateSlot(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuid.Parse(chi.URLParam(r, "venueID"))
	if err != nil {
		http.Error(w, "invalid venue id", http.StatusBadRequest)
		return
	}
	if err := h.ownedVenue(r, venueID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Date      string  `json:"date"`
		StartTime string  `json:"start_time"`
		EndTime   string  `json:"end_time"`
		Price     float64 `json:"price"`
		Label     string  `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := domain.ParseClock(req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}

	slot, err := h.reservations.CreateSlot(r.Context(), venueID, date, start, end, req.Price, req.Label)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slotResponse(*slot))
}

func (h *Handlers) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}
	slot, err := h.reservations.GetSlot(r.Context(), slotID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ownedVenue(r, slot.VenueID); err != nil {
		writeError(w, err)
		return
	}

	req := struct {
		StartTime string  `json:"start_time"`
		EndTime   string  `json:"end_time"`
		Price     float64 `json:"price"`
		Label     string  `json:"label"`
	}{
		StartTime: domain.FormatClock(slot.StartMinute),
		EndTime:   domain.FormatClock(slot.EndMinute),
		Price:     slot.Price,
		Label:     slot.Label,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := domain.ParseClock(req.EndTime)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.reservations.UpdateSlot(r.Context(), slotID, start, end, req.Price, req.Label)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse(*updated))
}

func (h *Handlers) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	slotID, err := uuid.Parse(chi.URLParam(r, "slotID"))
	if err != nil {
		http.Error(w, "invalid slot id", http.StatusBadRequest)
		return
	}
	slot, err := h.reservations.GetSlot(r.Context(), slotID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.ownedVenue(r, slot.VenueID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.reservations.DeleteSlot(r.Context(), slotID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Customer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		SlotIDs []uuid.UUID `json:"slot_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := h.reservations.HoldSlots(r.Context(), p.UserID, req.SlotIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	// Holds only land on approved venues; the slot rows carry the venue.
	if _, err := h.venues.GetApprovedVenue(r.Context(), booking.VenueID); err != nil {
		h.logger.WithField("venue_id", booking.VenueID.String()).Warn("hold on unapproved venue, cancelling")
		_ = h.reservations.Cancel(r.Context(), p.UserID, booking.ID)
		http.Error(w, "venue not found", http.StatusNotFound)
		return
	}

	data := writeJSON(w, http.StatusCreated, bookingResponse(*booking))
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) ActiveBooking(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Customer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	booking, err := h.reservations.ActiveBooking(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse(*booking))
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Customer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	booking, pays, err := h.reservations.GetBooking(r.Context(), p.UserID, bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	attempts := make([]map[string]interface{}, 0, len(pays))
	for _, pay := range pays {
		attempts = append(attempts, map[string]interface{}{
			"payment_id":   pay.ID,
			"provider_ref": pay.ProviderRef,
			"amount":       pay.Amount,
			"status":       pay.Status,
		})
	}
	resp := bookingResponse(*booking)
	resp["payments"] = attempts
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Customer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	payment, err := h.reservations.ProcessPayment(r.Context(), p.UserID, bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	data := writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":   payment.ID,
		"provider_ref": payment.ProviderRef,
		"amount":       payment.Amount,
		"status":       payment.Status,
		"retryable":    payment.Status == domain.PaymentFailed,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	p, err := identity.Customer(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	if err := h.reservations.Cancel(r.Context(), p.UserID, bookingID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking_id": bookingID, "status": domain.BookingCancelled})
}

func (h *Handlers) GeneratePreview(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuid.Parse(chi.URLParam(r, "venueID"))
	if err != nil {
		http.Error(w, "invalid venue id", http.StatusBadRequest)
		return
	}
	if err := h.ownedVenue(r, venueID); err != nil {
		writeError(w, err)
		return
	}
	p, _ := identity.Owner(r.Context())

	params, err := decodeGenerationParams(r, venueID)
	if err != nil {
		writeError(w, err)
		return
	}

	plan, err := h.generators.Preview(r.Context(), p.UserID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"to_create":      plan.ToCreate,
		"to_replace":     plan.ToReplace,
		"skipped_exists": plan.SkippedExists,
		"skipped_booked": plan.SkippedBooked,
		"total":          plan.Total(),
	})
}

func (h *Handlers) GenerateConfirm(w http.ResponseWriter, r *http.Request) {
	venueID, err := uuid.Parse(chi.URLParam(r, "venueID"))
	if err != nil {
		http.Error(w, "invalid venue id", http.StatusBadRequest)
		return
	}
	if err := h.ownedVenue(r, venueID); err != nil {
		writeError(w, err)
		return
	}
	p, _ := identity.Owner(r.Context())

	result, err := h.generators.Confirm(r.Context(), p.UserID, venueID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"created":  result.Created,
		"replaced": result.Replaced,
		"skipped":  result.Skipped,
	})
}

func decodeGenerationParams(r *http.Request, venueID uuid.UUID) (domain.GenerationParams, error) {
	var req struct {
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		Mode        string `json:"mode"`
		SlotMinutes int    `json:"slot_minutes"`
		Strategy    string `json:"strategy"`
		Blocks      []struct {
			StartTime string  `json:"start_time"`
			EndTime   string  `json:"end_time"`
			Price     float64 `json:"price"`
		} `json:"blocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.GenerationParams{}, domain.ErrInvalidInput
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return domain.GenerationParams{}, domain.ErrInvalidInput
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return domain.GenerationParams{}, domain.ErrInvalidInput
	}

	params := domain.GenerationParams{
		VenueID:     venueID,
		StartDate:   start,
		EndDate:     end,
		Mode:        domain.GenerationMode(req.Mode),
		SlotMinutes: req.SlotMinutes,
		Strategy:    domain.ConflictStrategy(req.Strategy),
	}
	for _, b := range req.Blocks {
		startMin, err := domain.ParseClock(b.StartTime)
		if err != nil {
			return domain.GenerationParams{}, err
		}
		endMin, err := domain.ParseClock(b.EndTime)
		if err != nil {
			return domain.GenerationParams{}, err
		}
		params.Blocks = append(params.Blocks, domain.TimeBlock{StartMinute: startMin, EndMinute: endMin, Price: b.Price})
	}
	return params, nil
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
