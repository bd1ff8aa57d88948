package referrals

import (
	"context"
	"errors"
	"strings"
	"time"

	"tailtribe/internal/domain/bookings"
	"tailtribe/internal/domain/notifications"
	"tailtribe/internal/platform/logger"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("referral not found")
	ErrAlreadyReferred = errors.New("user already referred")
)

const DefaultRewardCents int64 = 1000

type Notifier interface {
	Notify(ctx context.Context, in notifications.Input) (notifications.Notification, error)
}

// CodeLookup resuelve el código propio de un usuario (users.Service).
type CodeLookup interface {
	ReferralCodeOf(ctx context.Context, userID string) (string, error)
}

type Options struct {
	Notifier    Notifier
	Codes       CodeLookup
	RewardCents int64
	Logger      logger.Logger
}

type Service struct {
	repo        Repository
	notifier    Notifier
	codes       CodeLookup
	rewardCents int64
	log         logger.Logger
	now         func() time.Time
}

func NewService(repo Repository, opts Options) *Service {
	if opts.RewardCents <= 0 {
		opts.RewardCents = DefaultRewardCents
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Service{
		repo:        repo,
		notifier:    opts.Notifier,
		codes:       opts.Codes,
		rewardCents: opts.RewardCents,
		log:         opts.Logger,
		now:         time.Now,
	}
}

// Record implementa users.ReferralRecorder.
func (s *Service) Record(ctx context.Context, referrerID, referredID, code string) error {
	referrerID = strings.TrimSpace(referrerID)
	referredID = strings.TrimSpace(referredID)
	if referrerID == "" || referredID == "" || referrerID == referredID {
		return ErrInvalidInput
	}

	return s.repo.Create(ctx, Referral{
		ID:         uuid.NewString(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		Code:       strings.ToUpper(strings.TrimSpace(code)),
		Status:     StatusPending,
		CreatedAt:  s.now(),
	})
}

// OnBookingCompleted premia al que refirió a ownerID la primera vez que
// ownerID completa un booking. Las siguientes veces no hace nada.
func (s *Service) OnBookingCompleted(ctx context.Context, ownerID string) error {
	r, err := s.repo.GetByReferred(ctx, ownerID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if r.Status == StatusRewarded {
		return nil
	}

	now := s.now()
	r.Status = StatusRewarded
	r.RewardCents = s.rewardCents
	r.RewardedAt = &now
	if err := s.repo.Update(ctx, r); err != nil {
		return err
	}
	s.log.Info("referral rewarded", map[string]any{"referral_id": r.ID, "referrer_id": r.ReferrerID, "reward_cents": r.RewardCents})

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, notifications.Input{
			UserID: r.ReferrerID,
			Kind:   notifications.KindReferralRewarded,
			Title:  "You earned a referral reward",
			Body:   "Someone you invited completed their first booking. You earned " + bookings.FormatEUR(r.RewardCents) + ".",
			Link:   "/referrals",
		}); err != nil {
			s.log.Warn("referral notify failed", map[string]any{"referral_id": r.ID, "error": err})
		}
	}
	return nil
}

func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Summary{}, ErrInvalidInput
	}

	var out Summary
	if s.codes != nil {
		code, err := s.codes.ReferralCodeOf(ctx, userID)
		if err != nil {
			return Summary{}, err
		}
		out.Code = code
	}

	items, err := s.repo.ListByReferrer(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	out.Referrals = items
	for _, r := range items {
		switch r.Status {
		case StatusRewarded:
			out.Rewarded++
			out.TotalRewardCents += r.RewardCents
		default:
			out.Pending++
		}
	}
	return out, nil
}
