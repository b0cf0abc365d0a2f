package debug

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/triggerpoints/internal/logging"
)

// ChangeKind describes what happened to a breakpoint.
type ChangeKind int

const (
	// ChangeCreated is published when a record is created.
	ChangeCreated ChangeKind = iota
	// ChangeUpdated is published when the mode or colour changes.
	ChangeUpdated
	// ChangeInvalidated is published when the native breakpoint is lost.
	ChangeInvalidated
	// ChangeMoved is published when a record follows its native line.
	ChangeMoved
	// ChangeRemoved is published when a record is evicted.
	ChangeRemoved
)

// String returns a string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeInvalidated:
		return "invalidated"
	case ChangeMoved:
		return "moved"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after a breakpoint mutation.
type Change struct {
	Kind     ChangeKind
	Location Location

	// Previous is the old location for ChangeMoved.
	Previous Location

	Mode  Mode
	Color Color
	Valid bool
}

func changeOf(kind ChangeKind, s Snapshot) Change {
	return Change{
		Kind:     kind,
		Location: s.Location,
		Mode:     s.Mode,
		Color:    s.Color,
		Valid:    s.Valid,
	}
}

// HandlerFunc receives breakpoint changes.
type HandlerFunc func(Change)

// Subscription is a handle to a registered handler.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Active reports whether the subscription still receives changes.
	Active() bool

	// Cancel stops delivery. It is safe to call more than once.
	Cancel()
}

type subscription struct {
	id      string
	handler HandlerFunc
	path    string
	kinds   []ChangeKind
	active  atomic.Bool
}

func (s *subscription) ID() string   { return s.id }
func (s *subscription) Active() bool { return s.active.Load() }
func (s *subscription) Cancel()      { s.active.Store(false) }

func (s *subscription) wants(c Change) bool {
	if !s.active.Load() {
		return false
	}
	if s.path != "" && s.path != c.Location.Path && s.path != c.Previous.Path {
		return false
	}
	if len(s.kinds) > 0 && !slices.Contains(s.kinds, c.Kind) {
		return false
	}
	return true
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscription)

// WithPath limits delivery to changes in one source file.
func WithPath(path string) SubscribeOption {
	return func(s *subscription) {
		s.path = path
	}
}

// WithKinds limits delivery to the given change kinds.
func WithKinds(kinds ...ChangeKind) SubscribeOption {
	return func(s *subscription) {
		s.kinds = append(s.kinds, kinds...)
	}
}

// Notifier fans breakpoint changes out to subscribers. Delivery is
// synchronous, in subscription order, on the publishing goroutine.
type Notifier struct {
	mu     sync.RWMutex
	subs   []*subscription
	logger *slog.Logger
}

// NewNotifier creates a notifier. A nil logger discards output.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logging.OrDiscard(logger)}
}

// Subscribe registers fn for future changes.
func (n *Notifier) Subscribe(fn HandlerFunc, opts ...SubscribeOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	sub := &subscription{
		id:      uuid.New().String(),
		handler: fn,
	}
	for _, opt := range opts {
		opt(sub)
	}
	sub.active.Store(true)

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return sub, nil
}

// Unsubscribe cancels and forgets a subscription. It reports whether the
// subscription was known.
func (n *Notifier) Unsubscribe(sub Subscription) bool {
	if sub == nil {
		return false
	}
	sub.Cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == sub.ID() {
			n.subs = slices.Delete(n.subs, i, i+1)
			return true
		}
	}
	return false
}

// Len returns the number of registered subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish delivers changes in order. A panicking handler is logged and does
// not stop delivery to the others.
func (n *Notifier) Publish(changes ...Change) {
	if n == nil || len(changes) == 0 {
		return
	}
	n.mu.RLock()
	subs := make([]*subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for _, c := range changes {
		for _, s := range subs {
			if s.wants(c) {
				n.deliver(s, c)
			}
		}
	}
}

func (n *Notifier) deliver(s *subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("breakpoint change handler panicked",
				"subscription", s.id,
				"change", c.Kind.String(),
				"location", c.Location.String(),
				"panic", r,
			)
		}
	}()
	s.handler(c)
}
