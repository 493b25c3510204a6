// Package dashboard serves a read-only JSON view of onboarding progress.
package dashboard

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"region40-bot/internal/analytics"
	"region40-bot/internal/storage"
)

const maxRecent = 100

type Store interface {
	analytics.Store
	RecentProfiles(ctx context.Context, limit int) ([]storage.UserProfile, error)
	Ping(ctx context.Context) error
}

type Config struct {
	Addr     string
	User     string
	Password string
	// AllowIPs holds addresses or CIDR prefixes. Empty allows every client.
	AllowIPs []string
}

type Server struct {
	app       *fiber.App
	store     Store
	analytics *analytics.Service
	logger    *zap.Logger
	addr      string
}

type profileView struct {
	UserID        string `json:"user_id"`
	InGameName    string `json:"in_game_name"`
	Alliance      string `json:"alliance"`
	Language      string `json:"language"`
	Step          string `json:"onboarding_step"`
	Verified      bool   `json:"verified"`
	AutoTranslate bool   `json:"auto_translate"`
	JoinedAt      int64  `json:"joined_at"`
}

func New(cfg Config, store Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "region40-dashboard",
			DisableStartupMessage: true,
		}),
		store:     store,
		analytics: analytics.New(store),
		logger:    logger,
		addr:      cfg.Addr,
	}

	s.app.Use(recover.New())
	s.app.Get("/health", s.health)

	api := s.app.Group("/api",
		allowList(cfg.AllowIPs, logger),
		basicauth.New(basicauth.Config{
			Users: map[string]string{cfg.User: cfg.Password},
			Realm: "Region 40 Dashboard",
		}),
	)
	api.Get("/stats", s.stats)
	api.Get("/profiles/recent", s.recent)
	api.Get("/alliances", s.alliances)
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.addr))
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) stats(c *fiber.Ctx) error {
	funnel, err := s.analytics.Funnel(c.UserContext())
	if err != nil {
		return s.fail(c, "stats", err)
	}
	return c.JSON(funnel)
}

func (s *Server) recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	if limit > maxRecent {
		limit = maxRecent
	}

	profiles, err := s.store.RecentProfiles(c.UserContext(), limit)
	if err != nil {
		return s.fail(c, "recent profiles", err)
	}
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, profileView{
			UserID:        p.UserID,
			InGameName:    p.InGameName,
			Alliance:      p.Alliance,
			Language:      p.Language,
			Step:          p.OnboardingStep,
			Verified:      p.Verified,
			AutoTranslate: p.AutoTranslate,
			JoinedAt:      p.JoinedAt.Unix(),
		})
	}
	return c.JSON(views)
}

func (s *Server) alliances(c *fiber.Ctx) error {
	counts, err := s.store.AllianceCounts(c.UserContext())
	if err != nil {
		return s.fail(c, "alliance counts", err)
	}
	return c.JSON(counts)
}

func (s *Server) fail(c *fiber.Ctx, what string, err error) error {
	s.logger.Error("dashboard query failed", zap.String("query", what), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func allowList(entries []string, logger *zap.Logger) fiber.Handler {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logger.Warn("ignoring invalid dashboard allow-list entry", zap.String("entry", entry))
			continue
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	return func(c *fiber.Ctx) error {
		if len(entries) == 0 {
			return c.Next()
		}
		addr, err := netip.ParseAddr(c.IP())
		if err == nil {
			addr = addr.Unmap()
			for _, prefix := range prefixes {
				if prefix.Contains(addr) {
					return c.Next()
				}
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	}
}
