package app

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/2456Zebra/novahunt-sub001/app/config"
	"github.com/2456Zebra/novahunt-sub001/app/models"
	"github.com/2456Zebra/novahunt-sub001/auth"
)

// Narrow views of the backing services, so handlers can be exercised
// against fakes.
type userStore interface {
	Create(ctx context.Context, email, password string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
}

type quotaTracker interface {
	Consume(ctx context.Context, userID string, kind models.QuotaKind) error
	Snapshot(ctx context.Context, userID string) (models.Quota, error)
	Seed(ctx context.Context, userID string) error
}

type planResolver interface {
	Resolve(ctx context.Context, userID string) models.Plan
}

type checkoutProvider interface {
	CheckoutURL(ctx context.Context, user models.User) (string, error)
	PortalURL(ctx context.Context, user models.User) (string, error)
}

type webhookHandler interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) error
}

// Server holds every request-time dependency. All configuration and secrets
// arrive here at construction; request paths never consult the environment.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	sessions *auth.Sessions

	users        userStore
	quotas       quotaTracker
	entitlements planResolver
	billing      checkoutProvider
	webhooks     webhookHandler
}

// NewServer wires the production dependency graph on top of db.
func NewServer(cfg *config.Config, db *sql.DB, log *zap.Logger) *Server {
	codec := auth.NewCodec([]byte(cfg.Session.Secret))
	sessions := auth.NewSessions(codec, cfg.Session.TTL, cfg.IsProduction())

	subs := NewSubscriptions(db, cfg.Quota)
	billing := NewBilling(subs, cfg.Stripe)

	return &Server{
		cfg:          cfg,
		log:          log,
		sessions:     sessions,
		users:        NewUsers(db),
		quotas:       NewQuotas(db, cfg.Quota),
		entitlements: NewEntitlements(subs, cfg.Stripe.LiveEntitlementCheck, log),
		billing:      billing,
		webhooks:     NewEventProcessor(subs, cfg.Stripe.WebhookSecret, log),
	}
}

// Sessions exposes the session store for middleware wiring.
func (s *Server) Sessions() *auth.Sessions {
	return s.sessions
}
