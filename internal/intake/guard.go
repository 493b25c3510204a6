package intake

import (
	"sync"
	"time"

	"region40-bot/internal/utils"
)

const DefaultWindow = 30 * time.Second

// KeySet is an expiring set of event keys.
type KeySet interface {
	Has(key string) bool
	Set(key string, value struct{})
	Delete(key string)
}

// Guard drops duplicate deliveries of the same logical event. It keeps two
// markers per key: "seen" lives for the whole debounce window, "processing"
// lives until the handler releases it (or the window lapses).
type Guard struct {
	mu         sync.Mutex
	seen       KeySet
	processing KeySet
}

func NewGuard(window time.Duration, clock utils.Clock) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return NewGuardWithSets(
		utils.NewTTLMap[struct{}](window, clock),
		utils.NewTTLMap[struct{}](window, clock),
	)
}

func NewGuardWithSets(seen, processing KeySet) *Guard {
	return &Guard{seen: seen, processing: processing}
}

// Key identifies a user's event within a guild. DMs use the "dm" scope.
func Key(guildID, userID string) string {
	if guildID == "" {
		return "dm:" + userID
	}
	return guildID + ":" + userID
}

// ShouldProcess reports whether this is the first delivery of key within the
// window. A winning call marks the key seen and processing; callers release
// the processing marker once the handler is done.
func (g *Guard) ShouldProcess(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen.Has(key) || g.processing.Has(key) {
		return false
	}
	g.seen.Set(key, struct{}{})
	g.processing.Set(key, struct{}{})
	return true
}

// Acquire takes the in-flight marker without debouncing.
func (g *Guard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.processing.Has(key) {
		return false
	}
	g.processing.Set(key, struct{}{})
	return true
}

// Release clears the in-flight marker. The seen marker stays until it expires.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processing.Delete(key)
}

// Forget drops both markers so the next delivery of key is processed.
func (g *Guard) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen.Delete(key)
	g.processing.Delete(key)
}
