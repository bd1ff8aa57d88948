package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tailtribe/internal/domain/twofactor"
	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"
	"tailtribe/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// GoogleProvider abstrae el flujo OAuth (adapters/auth/google).
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (GoogleIdentity, error)
}

const oauthStateCookie = "tt_oauth_state"

// RegisterAuthRoutes monta las rutas públicas de autenticación.
// El router les aplica el rate limit de auth.
func RegisterAuthRoutes(r chi.Router, svc *Service, google GoogleProvider) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", registerHandler(svc))
		ar.Post("/login", loginHandler(svc))
		ar.Post("/2fa/verify", verifyTwoFactorHandler(svc))

		ar.Get("/google/login", googleLoginHandler(google))
		ar.Get("/google/callback", googleCallbackHandler(svc, google))
	})
}

// RegisterRoutes monta las rutas del usuario autenticado.
func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/me", func(mr chi.Router) {
		mr.Get("/", meHandler(svc))
		mr.Patch("/", updateMeHandler(svc))
		mr.Post("/2fa", setTwoFactorHandler(svc))
	})
}

type registerRequest struct {
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	Name         string    `json:"name"`
	Role         auth.Role `json:"role"`
	Country      Country   `json:"country"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	Phone        string    `json:"phone"`
	ReferralCode string    `json:"referral_code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyTwoFactorRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type updateMeRequest struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
}

type setTwoFactorRequest struct {
	Enabled bool `json:"enabled"`
}

type userResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             auth.Role `json:"role"`
	Phone            string    `json:"phone,omitempty"`
	City             string    `json:"city,omitempty"`
	PostalCode       string    `json:"postal_code,omitempty"`
	Country          Country   `json:"country"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	ReferralCode     string    `json:"referral_code"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token,omitempty"`
}

type twoFactorChallengeResponse struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeID       string `json:"challenge_id"`
}

// registerHandler godoc
// @Summary Registrar usuario
// @Description Crea una cuenta owner o caregiver. Si viene `referral_code` válido se registra el referido.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body registerRequest true "Datos de registro"
// @Success 201 {object} sessionResponse
// @Failure 400 {object} map[string]string "invalid input / unknown referral code"
// @Failure 409 {object} map[string]string "email already registered"
// @Failure 429 {object} map[string]string "too many requests"
// @Router /api/auth/register [post]
func registerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		sess, err := svc.Register(r.Context(), RegisterInput{
			Email:        req.Email,
			Password:     req.Password,
			Name:         req.Name,
			Role:         req.Role,
			Country:      req.Country,
			City:         req.City,
			PostalCode:   req.PostalCode,
			Phone:        req.Phone,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

// loginHandler godoc
// @Summary Login con email y password
// @Description Si el usuario tiene 2FA activo devuelve `two_factor_required` y un `challenge_id`; el código llega por email.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} sessionResponse
// @Failure 401 {object} map[string]string "invalid credentials"
// @Failure 429 {object} map[string]string "too many requests"
// @Router /api/auth/login [post]
func loginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		if res.TwoFactorRequired {
			httpx.WriteJSON(w, http.StatusOK, twoFactorChallengeResponse{
				TwoFactorRequired: true,
				ChallengeID:       res.ChallengeID,
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toSessionResponse(res.Session))
	}
}

func verifyTwoFactorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyTwoFactorRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		sess, err := svc.VerifyTwoFactor(r.Context(), req.ChallengeID, req.Code)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func googleLoginHandler(google GoogleProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if google == nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "google sign-in not configured")
			return
		}

		// state contra CSRF, validado en el callback
		state := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/api/auth/google",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, google.AuthCodeURL(state), http.StatusFound)
	}
}

func googleCallbackHandler(svc *Service, google GoogleProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if google == nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "google sign-in not configured")
			return
		}

		q := r.URL.Query()
		code := q.Get("code")
		if code == "" {
			httpx.WriteError(w, http.StatusBadRequest, "code required")
			return
		}
		c, err := r.Cookie(oauthStateCookie)
		if err != nil || c.Value == "" || c.Value != q.Get("state") {
			httpx.WriteError(w, http.StatusBadRequest, "invalid oauth state")
			return
		}

		identity, err := google.Exchange(r.Context(), code)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "google sign-in failed")
			return
		}

		res, err := svc.GoogleLogin(r.Context(), identity)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		if res.TwoFactorRequired {
			httpx.WriteJSON(w, http.StatusOK, twoFactorChallengeResponse{
				TwoFactorRequired: true,
				ChallengeID:       res.ChallengeID,
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toSessionResponse(res.Session))
	}
}

// meHandler godoc
// @Summary Perfil del usuario autenticado
// @Tags users
// @Produce json
// @Param Authorization header string false "Bearer token"
// @Success 200 {object} userResponse
// @Failure 401 {object} map[string]string "unauthorized"
// @Router /api/me [get]
func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		u, err := svc.GetByID(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func updateMeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req updateMeRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		u, err := svc.UpdateProfile(r.Context(), claims.UserID, UpdateProfileInput{
			Name:       req.Name,
			Phone:      req.Phone,
			City:       req.City,
			PostalCode: req.PostalCode,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func setTwoFactorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req setTwoFactorRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		u, err := svc.SetTwoFactor(r.Context(), claims.UserID, req.Enabled)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidReferral):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, twofactor.ErrInvalidCode),
		errors.Is(err, twofactor.ErrExpired):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, twofactor.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTwoFactorDisabled):
		httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		Phone:            u.Phone,
		City:             u.City,
		PostalCode:       u.PostalCode,
		Country:          u.Country,
		TwoFactorEnabled: u.TwoFactorEnabled,
		ReferralCode:     u.ReferralCode,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{User: toUserResponse(s.User), Token: s.Token}
}
