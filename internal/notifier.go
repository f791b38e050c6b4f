package internal

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"github.com/printq/printq/internal/model"
)

const (
	ordersChannel    = "print_orders_changed"
	reconnectBackoff = 5 * time.Second
)

// Notifier gives the staff dashboard a live view of the order set. It holds
// a dedicated connection LISTENing on the channel fired by the orders table
// trigger; every notification re-fetches the full joined list and fans it
// out to subscribers. Delivery is at-least-once per actual change; rapid
// bursts may coalesce.
type Notifier struct {
	connString string
	repo       IRepository
	logger     *zap.SugaredLogger

	Connect func(ctx context.Context, connString string) (ListenerConn, error)
	Backoff time.Duration

	mu   sync.Mutex
	subs map[int]func([]model.Order)
	next int
}

// ListenerConn is the slice of pgx.Conn the listener uses.
type ListenerConn interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

func NewNotifier(connString string, repo IRepository, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{
		connString: connString,
		repo:       repo,
		logger:     logger,
		Connect: func(ctx context.Context, connString string) (ListenerConn, error) {
			return pgx.Connect(ctx, connString)
		},
		Backoff: reconnectBackoff,
		subs:    make(map[int]func([]model.Order)),
	}
}

// Subscribe registers a callback for order list updates and returns its
// unsubscribe function. Unsubscribing twice is safe.
func (n *Notifier) Subscribe(callback func([]model.Order)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Run blocks listening for order changes until ctx is cancelled,
// reconnecting with backoff after connection failures.
func (n *Notifier) Run(ctx context.Context) {
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		n.logger.Errorf("orders listener: %s, reconnecting in %s", err, n.Backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(n.Backoff):
		}
	}
}

func (n *Notifier) listen(ctx context.Context) error {
	conn, err := n.Connect(ctx, n.connString)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+ordersChannel)
	if err != nil {
		return err
	}

	// changes committed while no connection was listening fired
	// notifications nobody heard; resync subscribers on every connect
	n.Publish(ctx)

	for {
		_, err = conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		n.Publish(ctx)
	}
}

// Publish re-fetches the order list and invokes every subscriber with it.
func (n *Notifier) Publish(ctx context.Context) {
	orders, err := n.repo.GetOrders(ctx)
	if err != nil {
		n.logger.Errorf("refetching orders for subscribers: %s", err)
		return
	}

	n.mu.Lock()
	callbacks := make([]func([]model.Order), 0, len(n.subs))
	for _, cb := range n.subs {
		callbacks = append(callbacks, cb)
	}
	n.mu.Unlock()

	for _, cb := range callbacks {
		cb(orders)
	}
}
