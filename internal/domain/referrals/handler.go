package referrals

import (
	"errors"
	"net/http"
	"time"

	"tailtribe/internal/domain/bookings"
	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/referrals", summaryHandler(svc))
}

type referralResponse struct {
	ReferredID  string     `json:"referred_id"`
	Status      Status     `json:"status"`
	RewardCents int64      `json:"reward_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	RewardedAt  *time.Time `json:"rewarded_at,omitempty"`
}

type summaryResponse struct {
	Code             string             `json:"code"`
	Referrals        []referralResponse `json:"referrals"`
	Pending          int                `json:"pending"`
	Rewarded         int                `json:"rewarded"`
	TotalRewardCents int64              `json:"total_reward_cents"`
	TotalReward      string             `json:"total_reward"`
}

// summaryHandler godoc
// @Summary Mi código de referido y mis referidos
// @Tags referrals
// @Produce json
// @Success 200 {object} summaryResponse
// @Failure 401 {object} map[string]string "unauthorized"
// @Router /api/referrals [get]
func summaryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.RequireClaims(w, r)
		if !ok {
			return
		}

		sum, err := svc.Summary(r.Context(), claims.UserID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		items := make([]referralResponse, 0, len(sum.Referrals))
		for _, ref := range sum.Referrals {
			items = append(items, referralResponse{
				ReferredID:  ref.ReferredID,
				Status:      ref.Status,
				RewardCents: ref.RewardCents,
				CreatedAt:   ref.CreatedAt,
				RewardedAt:  ref.RewardedAt,
			})
		}
		httpx.WriteJSON(w, http.StatusOK, summaryResponse{
			Code:             sum.Code,
			Referrals:        items,
			Pending:          sum.Pending,
			Rewarded:         sum.Rewarded,
			TotalRewardCents: sum.TotalRewardCents,
			TotalReward:      bookings.FormatEUR(sum.TotalRewardCents),
		})
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	default:
		httpx.WriteInternalError(w, r, err)
	}
}
