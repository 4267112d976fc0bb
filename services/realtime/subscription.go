package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dbautorest/pkg/logger"
	"dbautorest/services/driver"
	"dbautorest/services/engine"
)

// Mode selects how changes are detected.
type Mode string

// Detection modes.
const (
	ModePoll   Mode = "poll"
	ModeNative Mode = "native"
)

// ParseMode maps a query parameter onto a Mode; anything but "native" polls.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeNative)) {
		return ModeNative
	}
	return ModePoll
}

// SubscribeRequest describes the list query to watch.
type SubscribeRequest struct {
	ClientID string
	Request  engine.RequestContext
	Entity   string
	Params   engine.ListParams
	Interval time.Duration // 0 uses the service default
	Mode     Mode
}

// Event is sent when the watched page changes.
type Event struct {
	SubscriptionID string       `json:"subscriptionId"`
	Entity         string       `json:"entity"`
	Checksum       string       `json:"checksum"`
	Total          int64        `json:"total"`
	Data           []driver.Row `json:"data"`
	At             time.Time    `json:"at"`
}

// Subscription is one client's watch on a list query.
type Subscription struct {
	ID       string
	ClientID string
	Entity   string
	Mode     Mode

	req     SubscribeRequest
	entryID cron.EntryID
	kick    chan struct{}
	stop    func()

	runMu sync.Mutex // serializes checks

	mu       sync.Mutex
	events   chan Event
	closed   bool
	baseline bool
	last     uint64
}

// Events delivers change events. The channel is closed on unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// send delivers ev without blocking; it reports false when the subscriber
// is too slow and the event was dropped.
func (s *Subscription) send(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// observe records checksum and reports whether it differs from the last
// one. The first observation only sets the baseline.
func (s *Subscription) observe(checksum uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.baseline {
		s.baseline = true
		s.last = checksum
		return false
	}
	if s.last == checksum {
		return false
	}
	s.last = checksum
	return true
}

func (s *Subscription) close() {
	if s.stop != nil {
		s.stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

func (s *Subscription) log() *logger.Entry {
	return logger.With(logger.Fields{
		"subscription": s.ID,
		"client":       s.ClientID,
		"service":      s.req.Request.ServiceID,
		"entity":       s.Entity,
	})
}
