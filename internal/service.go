package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printq/printq/internal/model"
)

type IService interface {
	SubmitOrder(context.Context, model.CreateOrderInput) (string, error)
	CompleteOrder(context.Context, string) error
	DeleteOrder(context.Context, string) error
	ActivateNext(context.Context) error
	ResetQueueStatus(context.Context) error
	GetOrders(context.Context) ([]model.Order, error)
	GetOrderByID(context.Context, string) (model.Order, error)
}

// Service is the queue controller: the only writer of order status and
// activity. At most one pending order is active at any time; the active
// order is always the oldest pending one.
type Service struct {
	Repository IRepository
	Files      IFileStore
	logger     *zap.SugaredLogger
}

func NewService(repository IRepository, files IFileStore, logger *zap.SugaredLogger) *Service {
	return &Service{Repository: repository, Files: files, logger: logger}
}

func (s Service) SubmitOrder(ctx context.Context, input model.CreateOrderInput) (string, error) {
	if input.StudentName == "" || input.StudentID == "" {
		return "", ErrMissingStudentInfo
	}
	if len(input.Files) == 0 {
		return "", ErrNoFiles
	}
	if !input.Config.Valid() {
		return "", ErrInvalidConfig
	}
	for _, f := range input.Files {
		if f.Config != nil && !f.Config.Valid() {
			return "", ErrInvalidConfig
		}
	}

	order := model.Order{
		ID:                uuid.NewString(),
		StudentName:       input.StudentName,
		StudentID:         input.StudentID,
		Timestamp:         time.Now().UTC(),
		Status:            model.OrderStatusPending,
		IsActive:          false,
		Amount:            input.Amount,
		AdditionalDetails: input.AdditionalDetails,
		Config:            input.Config,
	}

	files := make([]model.PrintFile, 0, len(input.Files))
	for _, f := range input.Files {
		cfg := input.Config
		if f.Config != nil {
			cfg = *f.Config
		}

		path, err := s.Files.Save(ctx, order.ID, f.Name, f.Data)
		if err != nil {
			s.removeFiles(ctx, order.ID)
			return "", err
		}

		files = append(files, model.PrintFile{
			Name:        f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
			PageCount:   f.PageCount,
			StoragePath: path,
			Config:      cfg,
			ConfigGroup: cfg.GroupKey(),
		})
	}

	err := s.Repository.CreateOrder(ctx, order, files)
	if err != nil {
		s.removeFiles(ctx, order.ID)
		return "", err
	}
	ordersSubmittedTotal.Inc()

	// the order is persisted from here on, so activation failures are
	// logged instead of surfaced: nothing may stay active, which the
	// next queue transition or ResetQueueStatus recovers from
	active, err := s.Repository.HasActiveOrder(ctx)
	if err != nil {
		s.logger.Errorf("checking active order after submit of %s: %s", order.ID, err)
		return order.ID, nil
	}

	// empty queue: the fresh order becomes the head immediately
	if !active {
		if err = s.ActivateNext(ctx); err != nil {
			s.logger.Errorf("activating queue head after submit of %s: %s", order.ID, err)
		}
	}

	return order.ID, nil
}

func (s Service) CompleteOrder(ctx context.Context, orderID string) error {
	order, err := s.Repository.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	// double-click race: completing twice is a no-op
	if order.Status == model.OrderStatusCompleted {
		s.logger.Debugf("order %s is already completed", orderID)
		return nil
	}

	err = s.Repository.UpdateOrderStatus(ctx, orderID, model.OrderStatusCompleted, false)
	if err != nil {
		return err
	}
	ordersCompletedTotal.Inc()

	return s.ActivateNext(ctx)
}

func (s Service) DeleteOrder(ctx context.Context, orderID string) error {
	order, err := s.Repository.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.Repository.DeleteOrder(ctx, orderID)
	if err != nil {
		return err
	}
	ordersDeletedTotal.Inc()

	s.removeFiles(ctx, orderID)

	if order.IsActive {
		return s.ActivateNext(ctx)
	}
	return nil
}

// ActivateNext re-establishes the single-active-order invariant. Safe to call
// at any point: it recomputes the head from persisted timestamps instead of
// advancing incrementally, so concurrent calls converge to the same state.
func (s Service) ActivateNext(ctx context.Context) error {
	err := s.Repository.ActivateNext(ctx)
	if err != nil {
		return err
	}
	queueActivationsTotal.Inc()
	return nil
}

// ResetQueueStatus corrects queue drift left by a crash mid-transition.
// Called on startup and from the dashboard; idempotent.
func (s Service) ResetQueueStatus(ctx context.Context) error {
	err := s.Repository.DeactivatePending(ctx)
	if err != nil {
		return err
	}
	return s.ActivateNext(ctx)
}

func (s Service) GetOrders(ctx context.Context) ([]model.Order, error) {
	return s.Repository.GetOrders(ctx)
}

func (s Service) GetOrderByID(ctx context.Context, orderID string) (model.Order, error) {
	return s.Repository.GetOrderByID(ctx, orderID)
}

func (s Service) removeFiles(ctx context.Context, orderID string) {
	if err := s.Files.RemoveAll(ctx, orderID); err != nil {
		s.logger.Errorf("removing files of order %s: %s", orderID, err)
	}
}
