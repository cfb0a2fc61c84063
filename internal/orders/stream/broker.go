package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Loxess-crl/carrito-compras/internal/orders"
	"github.com/Loxess-crl/carrito-compras/pkg/enums"
	pkgerrors "github.com/Loxess-crl/carrito-compras/pkg/errors"
	"github.com/Loxess-crl/carrito-compras/pkg/logger"
)

type snapshotSource interface {
	ListOrders(ctx context.Context, input orders.ListOrdersInput) (*orders.OrderList, error)
}

// Broker fans order-list snapshots out to in-process subscribers.
// Every delivery is a fresh authoritative read, so a subscriber can
// never observe updates to one order out of order even when nudges
// arrive more than once. Pending snapshots coalesce: a slow consumer
// skips intermediate states and receives the latest one.
type Broker struct {
	source snapshotSource
	logg   *logger.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

type subscriber struct {
	input orders.ListOrdersInput
	ch    chan *orders.OrderList
}

// NewBroker builds a broker reading snapshots from the given source.
func NewBroker(source snapshotSource, logg *logger.Logger) (*Broker, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Broker{
		source: source,
		logg:   logg,
		subs:   map[uint64]*subscriber{},
	}, nil
}

// Subscribe registers the actor for snapshot updates and sends the
// current snapshot immediately. Buyers observe only their own orders;
// business and delivery observe the global feed. The channel closes
// when ctx is cancelled.
func (b *Broker) Subscribe(ctx context.Context, actorID uuid.UUID, role enums.UserRole) (<-chan *orders.OrderList, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}

	sub := &subscriber{
		input: orders.ListOrdersInput{ActorID: actorID, ActorRole: role},
		ch:    make(chan *orders.OrderList, 1),
	}
	snapshot, err := b.source.ListOrders(ctx, sub.input)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	sub.push(snapshot)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(id)
	}()
	return sub.ch, nil
}

// Nudge refreshes every subscriber affected by a change to the given
// buyer's orders: the buyer's own feeds plus all global feeds.
func (b *Broker) Nudge(ctx context.Context, buyerID uuid.UUID) {
	b.mu.Lock()
	targets := make(map[uint64]orders.ListOrdersInput, len(b.subs))
	for id, sub := range b.subs {
		if sub.input.ActorRole == enums.UserRoleBuyer && sub.input.ActorID != buyerID {
			continue
		}
		targets[id] = sub.input
	}
	b.mu.Unlock()

	for id, input := range targets {
		snapshot, err := b.source.ListOrders(ctx, input)
		if err != nil {
			b.logg.Error(ctx, "order feed refresh failed", err)
			continue
		}
		b.deliver(id, snapshot)
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) deliver(id uint64, snapshot *orders.OrderList) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	sub.push(snapshot)
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}

// push replaces any undelivered snapshot with the newer one. The caller
// must hold the broker mutex.
func (sub *subscriber) push(snapshot *orders.OrderList) {
	for {
		select {
		case sub.ch <- snapshot:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}
