package bookings

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tailtribe/internal/domain/caregivers"
	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/ports/auth"
	"tailtribe/internal/ports/payments"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 64 << 10

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/bookings", func(br chi.Router) {
		br.Post("/", createHandler(svc))
		br.Get("/", listHandler(svc))

		br.Route("/{bookingID}", func(one chi.Router) {
			one.Get("/", getHandler(svc))
			one.Post("/accept", acceptHandler(svc))
			one.Post("/decline", declineHandler(svc))
			one.Post("/cancel", cancelHandler(svc))
			one.Post("/pay", payHandler(svc))
			one.Post("/complete", completeHandler(svc))
			one.Get("/completion", completionHandler(svc))
		})
	})
}

// RegisterWebhookRoutes va fuera del rate limit y sin auth: Stripe firma el body.
func RegisterWebhookRoutes(r chi.Router, svc *Service) {
	r.Post("/webhooks/stripe", stripeWebhookHandler(svc))
}

type createBookingRequest struct {
	CaregiverID string                 `json:"caregiver_id"`
	Service     caregivers.ServiceType `json:"service"`
	PetIDs      []string               `json:"pet_ids"`
	StartAt     time.Time              `json:"start_at"`
	EndAt       time.Time              `json:"end_at"`
	Notes       string                 `json:"notes"`
}

type completeRequest struct {
	Notes string `json:"notes"`
}

type bookingResponse struct {
	ID              string                 `json:"id"`
	OwnerID         string                 `json:"owner_id"`
	CaregiverID     string                 `json:"caregiver_id"`
	Service         caregivers.ServiceType `json:"service"`
	PetIDs          []string               `json:"pet_ids"`
	StartAt         time.Time              `json:"start_at"`
	EndAt           time.Time              `json:"end_at"`
	PriceCents      int64                  `json:"price_cents"`
	CommissionCents int64                  `json:"commission_cents"`
	PayoutCents     int64                  `json:"payout_cents"`
	PriceDisplay    string                 `json:"price_display"`
	Currency        string                 `json:"currency"`
	Status          Status                 `json:"status"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
}

type payResponse struct {
	Booking      bookingResponse `json:"booking"`
	ClientSecret string          `json:"client_secret"`
}

type completionResponse struct {
	BookingID   string    `json:"booking_id"`
	CaregiverID string    `json:"caregiver_id"`
	Notes       string    `json:"notes"`
	CompletedAt time.Time `json:"completed_at"`
}

// createHandler godoc
// @Summary Pedir un booking
// @Description Solo owners. El precio sale de la tarifa del cuidador; la ventana debe caer en tiempo libre.
// @Tags bookings
// @Accept json
// @Produce json
// @Param payload body createBookingRequest true "Booking"
// @Success 201 {object} bookingResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Failure 403 {object} map[string]string "forbidden"
// @Failure 404 {object} map[string]string "caregiver not found"
// @Failure 409 {object} map[string]string "not available"
// @Router /api/bookings [post]
func createHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleOwner)
		if !ok {
			return
		}

		var req createBookingRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		b, err := svc.Create(r.Context(), CreateInput{
			OwnerID:     claims.UserID,
			CaregiverID: req.CaregiverID,
			Service:     req.Service,
			PetIDs:      req.PetIDs,
			StartAt:     req.StartAt,
			EndAt:       req.EndAt,
			Notes:       req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

// listHandler godoc
// @Summary Mis bookings
// @Tags bookings
// @Produce json
// @Param role query string false "owner | caregiver (default: rol del usuario)"
// @Param status query string false "Filtrar por estado"
// @Success 200 {array} bookingResponse
// @Router /api/bookings [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		role := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role")))
		if role == "" {
			role = "owner"
			if claims.Role == auth.RoleCaregiver {
				role = "caregiver"
			}
		}
		f := ListFilter{Status: Status(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))}

		items, err := svc.ListAs(r.Context(), claims.UserID, role, f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]bookingResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toBookingResponse(b))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "bookingID")
		var (
			b   Booking
			err error
		)
		if claims.Role == auth.RoleAdmin {
			b, err = svc.GetAny(r.Context(), id)
		} else {
			b, err = svc.Get(r.Context(), id, claims.UserID)
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func acceptHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}
		b, err := svc.Accept(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func declineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}
		b, err := svc.Decline(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// cancelHandler godoc
// @Summary Cancelar un booking
// @Description Owner o cuidador. Si estaba pagado se reembolsa antes de cancelar.
// @Tags bookings
// @Produce json
// @Param bookingID path string true "Booking ID"
// @Success 200 {object} bookingResponse
// @Failure 409 {object} map[string]string "invalid booking state"
// @Router /api/bookings/{bookingID}/cancel [post]
func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		b, err := svc.Cancel(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

// payHandler godoc
// @Summary Pagar un booking aceptado
// @Description Crea el PaymentIntent de Stripe (idempotente por booking) y devuelve el client_secret.
// @Tags bookings
// @Produce json
// @Param bookingID path string true "Booking ID"
// @Success 200 {object} payResponse
// @Failure 409 {object} map[string]string "invalid booking state"
// @Failure 503 {object} map[string]string "payments not configured"
// @Router /api/bookings/{bookingID}/pay [post]
func payHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleOwner)
		if !ok {
			return
		}
		res, err := svc.Pay(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, payResponse{
			Booking:      toBookingResponse(res.Booking),
			ClientSecret: res.ClientSecret,
		})
	}
}

func completeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireRole(w, r, auth.RoleCaregiver)
		if !ok {
			return
		}

		// body opcional
		var req completeRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		c, err := svc.Complete(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID, req.Notes)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toCompletionResponse(c))
	}
}

func completionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}
		c, err := svc.Completion(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toCompletionResponse(c))
	}
}

// stripeWebhookHandler godoc
// @Summary Webhook de Stripe
// @Description Verifica Stripe-Signature. Eventos no manejados responden 200.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string "invalid webhook signature"
// @Router /api/webhooks/stripe [post]
func stripeWebhookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		if err := svc.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
			if errors.Is(err, payments.ErrInvalidSignature) {
				httpx.WriteError(w, http.StatusBadRequest, err.Error())
				return
			}
			// 5xx para que Stripe reintente.
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrServiceNotOffered),
		errors.Is(err, ErrSpeciesNotAccepted),
		errors.Is(err, ErrTooManyPets):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrCaregiverNotFound),
		errors.Is(err, ErrCompletionNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadState),
		errors.Is(err, ErrNotAvailable),
		errors.Is(err, ErrSlotTaken):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPaymentsUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toBookingResponse(b Booking) bookingResponse {
	petIDs := b.PetIDs
	if petIDs == nil {
		petIDs = []string{}
	}
	return bookingResponse{
		ID:              b.ID,
		OwnerID:         b.OwnerID,
		CaregiverID:     b.CaregiverID,
		Service:         b.Service,
		PetIDs:          petIDs,
		StartAt:         b.StartAt,
		EndAt:           b.EndAt,
		PriceCents:      b.PriceCents,
		CommissionCents: b.CommissionCents,
		PayoutCents:     b.PayoutCents,
		PriceDisplay:    FormatEUR(b.PriceCents),
		Currency:        b.Currency,
		Status:          b.Status,
		Notes:           b.Notes,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		CancelledAt:     b.CancelledAt,
	}
}

func toCompletionResponse(c ServiceCompletion) completionResponse {
	return completionResponse{
		BookingID:   c.BookingID,
		CaregiverID: c.CaregiverID,
		Notes:       c.Notes,
		CompletedAt: c.CompletedAt,
	}
}
