package analytics

import (
	"context"
	"math"
	"time"

	"region40-bot/internal/storage"
)

type Store interface {
	ProfileStats(ctx context.Context) (storage.ProfileStats, error)
	AllianceCounts(ctx context.Context) (map[string]int, error)
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// Funnel is how far members got through onboarding.
type Funnel struct {
	Total          int            `json:"total"`
	Verified       int            `json:"verified"`
	Profiled       int            `json:"profiled"`
	WithAlliance   int            `json:"with_alliance"`
	Completed      int            `json:"completed"`
	AutoTranslate  int            `json:"auto_translate"`
	CompletionRate int            `json:"completion_rate"`
	Alliances      map[string]int `json:"alliances"`
}

func (s *Service) Funnel(ctx context.Context) (Funnel, error) {
	stats, err := s.store.ProfileStats(ctx)
	if err != nil {
		return Funnel{}, err
	}
	alliances, err := s.store.AllianceCounts(ctx)
	if err != nil {
		return Funnel{}, err
	}
	return Funnel{
		Total:          stats.Total,
		Verified:       stats.Verified,
		Profiled:       stats.Profiled,
		WithAlliance:   stats.WithAlliance,
		Completed:      stats.Completed,
		AutoTranslate:  stats.AutoTranslate,
		CompletionRate: CompletionRate(stats.Profiled, stats.Total),
		Alliances:      alliances,
	}, nil
}

// CompletionRate is the rounded percentage of part in total.
func CompletionRate(part, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

type Report struct {
	Total   int            `json:"total"`
	ByLevel map[string]int `json:"by_level"`
	ByEvent map[string]int `json:"by_event"`
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
	}
	return report, nil
}
