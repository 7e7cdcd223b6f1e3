package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/finagent/finance-agent/db/models"
	"github.com/google/uuid"
)

// AllEvents subscribes to every event type.
const AllEvents = "*"

type Event struct {
	Type        string              `json:"type"`
	UserID      uuid.UUID           `json:"user_id"`
	User        *models.User        `json:"user,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan Event
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan Event)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan Event) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan Event)
	}
	subId = uuid.NewString()
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
}

// Publish hands msg to every subscriber of its type and of AllEvents without
// blocking. It returns how many subscribers had a full buffer and missed it.
func (ps *Pubsub) Publish(msg Event) (dropped int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, topic := range []string{msg.Type, AllEvents} {
		for _, ch := range ps.subs[topic] {
			select {
			case ch <- msg:
			default:
				dropped++
			}
		}
	}
	return dropped
}

func (svc *FinanceService) publish(event Event) {
	if svc.EventPubSub == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if dropped := svc.EventPubSub.Publish(event); dropped > 0 {
		svc.Logger.Warnf("Event %s missed by %d subscriber(s)", event.Type, dropped)
	}
}

// SubscribeEvents returns a buffered channel receiving every event and the
// function that unsubscribes it.
func (svc *FinanceService) SubscribeEvents() (chan Event, func(), error) {
	if svc.EventPubSub == nil {
		return nil, nil, errors.New("event pubsub is not configured")
	}
	events := make(chan Event, 64)
	subId := svc.EventPubSub.Subscribe(AllEvents, events)
	return events, func() { svc.EventPubSub.Unsubscribe(subId, AllEvents) }, nil
}

// EncodeEvent writes event as JSON.
func (svc *FinanceService) EncodeEvent(ctx context.Context, w io.Writer, event Event) error {
	return json.NewEncoder(w).Encode(event)
}
