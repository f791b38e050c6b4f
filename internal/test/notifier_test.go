package test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/printq/printq/internal"
	"github.com/printq/printq/internal/model"
)

// fakeListenerConn feeds the listener scripted notifications; closing the
// channel simulates a dropped connection.
type fakeListenerConn struct {
	notifications chan *pgconn.Notification
}

func (c *fakeListenerConn) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return nil, nil
}

func (c *fakeListenerConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ntf, ok := <-c.notifications:
		if !ok {
			return nil, errors.New("connection lost")
		}
		return ntf, nil
	}
}

func (c *fakeListenerConn) Close(context.Context) error { return nil }

var _ = Describe("Notifier", func() {
	var (
		ctx      context.Context
		store    *memStore
		notifier *internal.Notifier
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newMemStore()
		store.add(model.Order{ID: "a", Status: model.OrderStatusPending, Timestamp: time.Now()})

		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())
		notifier = internal.NewNotifier("", store, logger.Sugar())
	})

	It("fans the refreshed order list out to every subscriber", func() {
		var first, second [][]model.Order

		unsubFirst := notifier.Subscribe(func(orders []model.Order) { first = append(first, orders) })
		defer unsubFirst()
		unsubSecond := notifier.Subscribe(func(orders []model.Order) { second = append(second, orders) })
		defer unsubSecond()

		notifier.Publish(ctx)

		Expect(first).Should(HaveLen(1))
		Expect(second).Should(HaveLen(1))
		Expect(first[0]).Should(HaveLen(1))
		Expect(first[0][0].ID).Should(Equal("a"))
	})

	It("stops delivery after unsubscribe", func() {
		var got int

		unsub := notifier.Subscribe(func([]model.Order) { got++ })

		notifier.Publish(ctx)
		unsub()
		notifier.Publish(ctx)

		Expect(got).Should(Equal(1))
	})

	It("delivers a snapshot as soon as the listener connects", func() {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		conn := &fakeListenerConn{notifications: make(chan *pgconn.Notification)}
		notifier.Connect = func(context.Context, string) (internal.ListenerConn, error) { return conn, nil }

		got := make(chan []model.Order, 4)
		unsub := notifier.Subscribe(func(orders []model.Order) { got <- orders })
		defer unsub()

		go notifier.Run(runCtx)

		Eventually(got).Should(Receive(HaveLen(1)))
	})

	It("resynchronizes subscribers with changes missed while disconnected", func() {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		first := &fakeListenerConn{notifications: make(chan *pgconn.Notification)}
		second := &fakeListenerConn{notifications: make(chan *pgconn.Notification)}
		conns := make(chan *fakeListenerConn, 2)
		conns <- first
		conns <- second
		notifier.Connect = func(context.Context, string) (internal.ListenerConn, error) { return <-conns, nil }
		notifier.Backoff = time.Millisecond

		got := make(chan []model.Order, 4)
		unsub := notifier.Subscribe(func(orders []model.Order) { got <- orders })
		defer unsub()

		go notifier.Run(runCtx)
		Eventually(got).Should(Receive(HaveLen(1)))

		// this change commits right before the connection drops, so its
		// notification is never delivered on the old connection
		store.add(model.Order{ID: "b", Status: model.OrderStatusPending, Timestamp: time.Now()})
		close(first.notifications)

		Eventually(got).Should(Receive(HaveLen(2)))
	})

	It("tolerates a double unsubscribe", func() {
		var got int

		unsub := notifier.Subscribe(func([]model.Order) { got++ })
		keep := notifier.Subscribe(func([]model.Order) { got++ })
		defer keep()

		unsub()
		unsub()

		notifier.Publish(ctx)
		Expect(got).Should(Equal(1))
	})
})
