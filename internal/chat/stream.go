package chat

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roomchat/internal/models"
	"roomchat/internal/observability"
	"roomchat/internal/realtime"
	"roomchat/internal/repositories"
)

// ChangeFeed hands out change subscriptions.
type ChangeFeed interface {
	Subscribe(table string, filter realtime.Filter) *realtime.Subscription
}

type StreamState int

const (
	StreamIdle StreamState = iota
	StreamLive
	StreamClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamLive:
		return "live"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type watch struct {
	table  string
	filter realtime.Filter
}

// Stream keeps a view's copy of a collection current. Every change notification on a
// watched collection triggers a full refetch whose result replaces what the view had.
// Notifications arriving while a refetch is pending coalesce into a single refetch.
type Stream[T any] struct {
	kind    string
	feed    ChangeFeed
	watches []watch
	fetch   func(ctx context.Context) (T, error)
	deliver func(T)
	tracer  trace.Tracer

	mu     sync.Mutex
	state  StreamState
	subs   []*realtime.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewMessageStream streams the ordered message list of one room.
func NewMessageStream(feed ChangeFeed, messages repositories.MessageRepository, roomID string, deliver func([]models.Message)) *Stream[[]models.Message] {
	return &Stream[[]models.Message]{
		kind:    "messages",
		feed:    feed,
		watches: []watch{{table: models.CollectionMessages, filter: realtime.Eq("room_id", roomID)}},
		fetch: func(ctx context.Context) ([]models.Message, error) {
			return messages.ListMessages(ctx, roomID)
		},
		deliver: deliver,
		tracer:  otel.Tracer("roomchat/chat"),
		done:    make(chan struct{}),
	}
}

// NewRoomListStream streams room summaries; room and membership changes both refetch.
func NewRoomListStream(feed ChangeFeed, directory *Directory, deliver func([]models.RoomSummary)) *Stream[[]models.RoomSummary] {
	return &Stream[[]models.RoomSummary]{
		kind: "rooms",
		feed: feed,
		watches: []watch{
			{table: models.CollectionRooms},
			{table: models.CollectionMembers},
		},
		fetch:   directory.ListRoomSummaries,
		deliver: deliver,
		tracer:  otel.Tracer("roomchat/chat"),
		done:    make(chan struct{}),
	}
}

// State reports where the stream is in its lifecycle.
func (s *Stream[T]) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start subscribes, fetches and delivers the initial list, then goes Live. Subscribing
// comes first so that changes made during the initial fetch are not missed. If the
// initial fetch fails the stream is closed.
func (s *Stream[T]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StreamIdle {
		s.mu.Unlock()
		return ErrStreamStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, w := range s.watches {
		s.subs = append(s.subs, s.feed.Subscribe(w.table, w.filter))
	}
	s.mu.Unlock()

	initial, err := s.load(ctx)
	if err != nil {
		s.Close()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamIdle {
		return nil
	}
	s.deliver(initial)
	s.state = StreamLive

	signal := make(chan struct{}, 1)
	for _, sub := range s.subs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for range sub.C {
				select {
				case signal <- struct{}{}:
				default:
				}
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case <-signal:
			}
			s.refetch(ctx)
		}
	}()
	return nil
}

// Close unsubscribes and stops the stream. Nothing is delivered once Close returns.
// Close must not be called from the deliver callback.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.state == StreamClosed {
		s.mu.Unlock()
		return
	}
	s.state = StreamClosed
	close(s.done)
	if s.cancel != nil {
		s.cancel()
	}
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.wg.Wait()
}

func (s *Stream[T]) refetch(ctx context.Context) {
	data, err := s.load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("stream refetch failed kind=%s: %v", s.kind, err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StreamLive {
		return
	}
	s.deliver(data)
}

func (s *Stream[T]) load(ctx context.Context) (T, error) {
	ctx, span := s.tracer.Start(ctx, "stream.refetch", trace.WithAttributes(attribute.String("stream.kind", s.kind)))
	defer span.End()

	data, err := s.fetch(ctx)
	observability.IncStreamRefetch(s.kind, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return data, err
}
