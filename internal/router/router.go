package router

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	_ "tailtribe/docs"
	"tailtribe/internal/adapters/storage/memory"
	"tailtribe/internal/adapters/storage/postgres"
	"tailtribe/internal/config"
	"tailtribe/internal/domain/availability"
	"tailtribe/internal/domain/bookings"
	"tailtribe/internal/domain/caregivers"
	"tailtribe/internal/domain/messaging"
	"tailtribe/internal/domain/notifications"
	"tailtribe/internal/domain/pets"
	"tailtribe/internal/domain/referrals"
	"tailtribe/internal/domain/twofactor"
	"tailtribe/internal/domain/users"
	"tailtribe/internal/jobs"
	"tailtribe/internal/middleware"
	"tailtribe/internal/platform/health"
	"tailtribe/internal/platform/logger"
	"tailtribe/internal/platform/mailer"
	"tailtribe/internal/platform/ratelimit"
	"tailtribe/internal/ports/auth"
	"tailtribe/internal/ports/payments"
	"tailtribe/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options: todo es opcional. Sin DB se usan repos en memoria, sin
// AuthVerifier se entra en modo dev (headers X-Debug-*).
type Options struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	Logger logger.Logger

	AuthVerifier auth.AuthVerifier
	TokenIssuer  auth.TokenIssuer
	Google       users.GoogleProvider

	Payments payments.Gateway
	Mailer   mailer.Mailer

	Limiter     ratelimit.Limiter
	AuthLimiter ratelimit.Limiter

	// Hub nil: no se monta /api/ws y no hay push en tiempo real.
	Hub *realtime.Hub
	// Jobs: si viene, main se encarga de Start/Stop del scheduler.
	Jobs *jobs.Runner
}

type repositories struct {
	users         users.Repository
	challenges    twofactor.Repository
	pets          pets.Repository
	caregivers    caregivers.Repository
	slots         availability.Repository
	bookings      bookings.Repository
	notifications notifications.Repository
	referrals     referrals.Repository
	messaging     messaging.Repository
}

func newRepositories(db *sql.DB) repositories {
	if db == nil {
		return repositories{
			users:         memory.NewUserRepo(),
			challenges:    memory.NewChallengeRepo(),
			pets:          memory.NewPetRepo(),
			caregivers:    memory.NewCaregiverRepo(),
			slots:         memory.NewSlotRepo(),
			bookings:      memory.NewBookingRepo(),
			notifications: memory.NewNotificationRepo(),
			referrals:     memory.NewReferralRepo(),
			messaging:     memory.NewMessagingRepo(),
		}
	}
	return repositories{
		users:         postgres.NewUsersRepo(db),
		challenges:    postgres.NewChallengesRepo(db),
		pets:          postgres.NewPetsRepo(db),
		caregivers:    postgres.NewCaregiversRepo(db),
		slots:         postgres.NewSlotsRepo(db),
		bookings:      postgres.NewBookingsRepo(db),
		notifications: postgres.NewNotificationsRepo(db),
		referrals:     postgres.NewReferralsRepo(db),
		messaging:     postgres.NewMessagingRepo(db),
	}
}

func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	mail := opts.Mailer
	if mail == nil {
		mail = mailer.Noop{Log: log}
	}

	repos := newRepositories(opts.DB)

	// Servicios. El orden importa: users <- notifications <- referrals, y
	// availability recibe a bookings después para calcular lo ocupado.
	twoFactorSvc := twofactor.NewService(repos.challenges, mail)
	usersSvc := users.NewService(repos.users, opts.TokenIssuer, twoFactorSvc, nil)

	notifOpts := notifications.Options{
		Mailer:    mail,
		Emails:    usersSvc,
		PublicURL: cfg.App.PublicURL,
		Logger:    log,
	}
	msgOpts := messaging.Options{Roles: usersSvc, Logger: log}
	if opts.Hub != nil {
		notifOpts.Pusher = opts.Hub
		msgOpts.Pusher = opts.Hub
	}
	notificationsSvc := notifications.NewService(repos.notifications, notifOpts)
	msgOpts.Notifier = notificationsSvc

	referralsSvc := referrals.NewService(repos.referrals, referrals.Options{
		Notifier:    notificationsSvc,
		Codes:       usersSvc,
		RewardCents: cfg.App.ReferralRewardCts,
		Logger:      log,
	})
	usersSvc.SetReferrals(referralsSvc)

	petsSvc := pets.NewService(repos.pets)
	caregiversSvc := caregivers.NewService(repos.caregivers)
	availabilitySvc := availability.NewService(repos.slots, cfg.Location())

	bookingsSvc := bookings.NewService(bookings.Deps{
		Repo:              repos.bookings,
		Caregivers:        caregiversSvc,
		Pets:              petsSvc,
		Availability:      availabilitySvc,
		Payments:          opts.Payments,
		Notifier:          notificationsSvc,
		Referrals:         referralsSvc,
		Log:               log,
		CommissionPercent: cfg.App.CommissionPercent,
		Currency:          cfg.Stripe.Currency,
	})
	availabilitySvc.SetBusyLookup(bookingsSvc)

	messagingSvc := messaging.NewService(repos.messaging, msgOpts)

	runner := opts.Jobs
	if runner == nil {
		runner = jobs.NewRunner(cfg.Location(), log)
	}
	if err := jobs.RegisterDefaults(runner, bookingsSvc, twoFactorSvc); err != nil {
		log.Error("jobs registration failed", map[string]any{"error": err})
	}

	agg := newHealth(opts, mail)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(log))
	r.Use(middleware.RequestLog(log))

	// Auth context (JWT o dev headers)
	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(api chi.Router) {
		// Sin rate limit: Stripe reintenta y el scheduler externo es nuestro.
		bookings.RegisterWebhookRoutes(api, bookingsSvc)
		jobs.RegisterRoutes(api, runner, cfg.Cron.Secret)
		health.RegisterRoutes(api, agg)

		api.Group(func(ar chi.Router) {
			ar.Use(middleware.RateLimit(opts.AuthLimiter, "auth"))
			users.RegisterAuthRoutes(ar, usersSvc, opts.Google)
		})

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.RateLimit(opts.Limiter, "api"))

			users.RegisterRoutes(pr, usersSvc)
			pets.RegisterRoutes(pr, petsSvc)
			caregivers.RegisterRoutes(pr, caregiversSvc)
			availability.RegisterRoutes(pr, availabilitySvc)
			bookings.RegisterRoutes(pr, bookingsSvc)
			messaging.RegisterRoutes(pr, messagingSvc)
			notifications.RegisterRoutes(pr, notificationsSvc)
			referrals.RegisterRoutes(pr, referralsSvc)

			if opts.Hub != nil {
				realtime.RegisterRoutes(pr, opts.Hub, cfg.CORS.AllowedOrigins, log)
			}
		})
	})

	return r
}

func newHealth(opts Options, mail mailer.Mailer) *health.Aggregator {
	agg := health.New(2 * time.Second)

	var dbCheck, redisCheck health.CheckFunc
	if opts.DB != nil {
		dbCheck = opts.DB.PingContext
	}
	if opts.Redis != nil {
		redisCheck = func(ctx context.Context) error { return opts.Redis.Ping(ctx).Err() }
	}

	agg.Add("database", true, dbCheck)
	agg.Add("redis", false, redisCheck)
	agg.Add("stripe", false, health.Configured(opts.Payments != nil))
	agg.Add("mail", false, health.Configured(mail.Configured()))
	return agg
}
