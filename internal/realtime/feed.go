// Package realtime fans database change notifications out to in-process subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"roomchat/internal/models"
	"roomchat/internal/observability"
)

// Filter is an equality filter on a row column. The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// Eq builds an equality filter.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func (f Filter) matches(evt models.ChangeEvent) bool {
	if f.Column == "" || evt.Op == models.OpResync {
		return true
	}
	return evt.Row[f.Column] == f.Value
}

// Subscription is a standing change stream for one collection and filter.
// C carries at most one pending event; further events are coalesced until it is read.
type Subscription struct {
	C <-chan models.ChangeEvent

	ch     chan models.ChangeEvent
	table  string
	filter Filter
	feed   *Feed
	once   sync.Once
}

// Unsubscribe stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// Feed dispatches change events to subscribers keyed by collection.
type Feed struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a subscription on a collection.
func (f *Feed) Subscribe(table string, filter Filter) *Subscription {
	ch := make(chan models.ChangeEvent, 1)
	sub := &Subscription{C: ch, ch: ch, table: table, filter: filter, feed: f}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[table]; !ok {
		f.subs[table] = make(map[*Subscription]struct{})
	}
	f.subs[table][sub] = struct{}{}
	observability.SetFeedSubscribers(table, len(f.subs[table]))
	return sub
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if subs, ok := f.subs[sub.table]; ok {
		delete(subs, sub)
		observability.SetFeedSubscribers(sub.table, len(subs))
		if len(subs) == 0 {
			delete(f.subs, sub.table)
		}
	}
	close(sub.ch)
}

// Subscribers reports the number of live subscriptions on a collection.
func (f *Feed) Subscribers(table string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[table])
}

// Publish delivers an event to matching subscribers without blocking.
// A RESYNC event with an empty table reaches every subscriber.
func (f *Feed) Publish(evt models.ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	observability.IncFeedNotification(evt.Table, evt.Op)
	deliver := func(subs map[*Subscription]struct{}) {
		for sub := range subs {
			if !sub.filter.matches(evt) {
				continue
			}
			select {
			case sub.ch <- evt:
			default:
				// a signal is already pending; the subscriber refetches everything anyway
			}
		}
	}

	if evt.Table == "" {
		for _, subs := range f.subs {
			deliver(subs)
		}
		return
	}
	deliver(f.subs[evt.Table])
}

// Listen consumes NOTIFY payloads from postgres until ctx is cancelled.
// healthy is called with the listener connection state when it changes; it may be nil.
func (f *Feed) Listen(ctx context.Context, dsn, channel string, healthy func(bool)) error {
	if healthy == nil {
		healthy = func(bool) {}
	}
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			healthy(true)
		case pq.ListenerEventDisconnected:
			log.Printf("change feed disconnected: %v", err)
			healthy(false)
		case pq.ListenerEventReconnected:
			log.Printf("change feed reconnected")
			healthy(true)
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("change feed connection attempt failed: %v", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	log.Printf("change feed listening channel=%s", channel)

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			healthy(false)
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// reconnected; anything sent while we were away is gone
				f.Publish(models.ChangeEvent{Op: models.OpResync})
				continue
			}
			evt, err := DecodeNotification(n.Extra)
			if err != nil {
				log.Printf("change feed decode failed: %v", err)
				continue
			}
			f.Publish(evt)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.Printf("change feed ping failed: %v", err)
				}
			}()
		}
	}
}

// DecodeNotification parses a trigger payload into a ChangeEvent.
func DecodeNotification(payload string) (models.ChangeEvent, error) {
	var raw struct {
		Table string         `json:"table"`
		Op    string         `json:"op"`
		Row   map[string]any `json:"row"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return models.ChangeEvent{}, err
	}
	if raw.Table == "" || raw.Op == "" {
		return models.ChangeEvent{}, fmt.Errorf("incomplete change payload: %q", payload)
	}

	row := make(map[string]string, len(raw.Row))
	for k, v := range raw.Row {
		if v == nil {
			continue
		}
		row[k] = fmt.Sprint(v)
	}
	// rooms have no room_id column; expose their id under it so room filters apply
	if raw.Table == models.CollectionRooms {
		row["room_id"] = row["id"]
	}
	return models.ChangeEvent{Table: raw.Table, Op: raw.Op, Row: row}, nil
}
