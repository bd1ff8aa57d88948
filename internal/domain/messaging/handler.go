package messaging

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/conversations", func(cr chi.Router) {
		cr.Post("/", startHandler(svc))
		cr.Get("/", listHandler(svc))
		cr.Get("/{conversationID}/messages", listMessagesHandler(svc))
		cr.Post("/{conversationID}/messages", sendHandler(svc))
		cr.Post("/{conversationID}/read", markReadHandler(svc))
	})
}

type startRequest struct {
	ParticipantID string `json:"participant_id"`
}

type sendRequest struct {
	Body string `json:"body"`
}

type conversationResponse struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	CaregiverID   string     `json:"caregiver_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Body           string     `json:"body"`
	Redacted       bool       `json:"redacted"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// startHandler godoc
// @Summary Abrir (o recuperar) una conversación
// @Description Siempre entre un owner y un cuidador.
// @Tags messaging
// @Accept json
// @Produce json
// @Param payload body startRequest true "Otro participante"
// @Success 200 {object} conversationResponse
// @Failure 400 {object} map[string]string "invalid input"
// @Router /api/conversations [post]
func startHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req startRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		c, err := svc.Start(r.Context(), claims.UserID, req.ParticipantID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toConversationResponse(c))
	}
}

func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		items, err := svc.List(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]conversationResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toConversationResponse(c))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

func listMessagesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := svc.Messages(r.Context(), chi.URLParam(r, "conversationID"), claims.UserID, limit)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]MessageResponse, 0, len(items))
		for _, m := range items {
			out = append(out, ToMessageResponse(m))
		}
		httpx.WriteJSON(w, http.StatusOK, out)
	}
}

// sendHandler godoc
// @Summary Enviar un mensaje
// @Description Emails, teléfonos, URLs e IBAN se reemplazan por [hidden].
// @Tags messaging
// @Accept json
// @Produce json
// @Param conversationID path string true "Conversation ID"
// @Param payload body sendRequest true "Mensaje"
// @Success 201 {object} MessageResponse
// @Failure 403 {object} map[string]string "forbidden"
// @Router /api/conversations/{conversationID}/messages [post]
func sendHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		var req sendRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		m, err := svc.Send(r.Context(), chi.URLParam(r, "conversationID"), claims.UserID, req.Body)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, ToMessageResponse(m))
	}
}

func markReadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		n, err := svc.MarkRead(r.Context(), chi.URLParam(r, "conversationID"), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]int{"updated": n})
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidParticipant):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}

func toConversationResponse(c Conversation) conversationResponse {
	return conversationResponse{
		ID:            c.ID,
		OwnerID:       c.OwnerID,
		CaregiverID:   c.CaregiverID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

// ToMessageResponse también es el payload del push.
func ToMessageResponse(m Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		Redacted:       m.Redacted,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}
