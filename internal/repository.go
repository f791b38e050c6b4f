package internal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/printq/printq/internal/model"
)

const (
	orderFields = "id, student_name, student_id, amount, status, is_active, additional_details, timestamp"
	fileFields  = "order_id, file_name, file_size, file_type, page_count, storage_path, config_color, config_sides, config_copies, config_group"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type IRepository interface {
	CreateOrder(context.Context, model.Order, []model.PrintFile) error
	GetOrderByID(context.Context, string) (model.Order, error)
	GetOrders(context.Context) ([]model.Order, error)
	HasActiveOrder(context.Context) (bool, error)
	ActivateNext(context.Context) error
	DeactivatePending(context.Context) error
	UpdateOrderStatus(context.Context, string, string, bool) error
	DeleteOrder(context.Context, string) error
}

type Repository struct {
	Conn   *sql.DB
	Logger *zap.SugaredLogger
}

func NewRepository(connString string, logger *zap.SugaredLogger) (*Repository, error) {
	conn, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	if err = conn.Ping(); err != nil {
		return nil, err
	}

	if err = runMigrations(conn); err != nil {
		return nil, err
	}
	logger.Info("database schema is up to date")

	return &Repository{Conn: conn, Logger: logger}, nil
}

func runMigrations(conn *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(conn, "migrations")
}

func (r Repository) CreateOrder(ctx context.Context, o model.Order, files []model.PrintFile) error {
	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "INSERT INTO print_orders ("+orderFields+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		o.ID, o.StudentName, o.StudentID, o.Amount, o.Status, o.IsActive, o.AdditionalDetails, o.Timestamp)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO print_configs (order_id, color, sides, copies) VALUES ($1, $2, $3, $4)",
		o.ID, o.Config.Color, o.Config.Sides, o.Config.Copies)
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}

	for _, f := range files {
		_, err = tx.ExecContext(ctx, "INSERT INTO print_files ("+fileFields+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			o.ID, f.Name, f.Size, f.ContentType, f.PageCount, f.StoragePath, f.Config.Color, f.Config.Sides, f.Config.Copies, f.ConfigGroup)
		if err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	r.Logger.Debugf("stored order %s with %d files", o.ID, len(files))
	return nil
}

func (r Repository) GetOrderByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	row := r.Conn.QueryRowContext(ctx, "SELECT "+orderFields+" FROM print_orders WHERE id = $1", orderID)
	err := row.Scan(&o.ID, &o.StudentName, &o.StudentID, &o.Amount, &o.Status, &o.IsActive, &o.AdditionalDetails, &o.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, err
	}

	row = r.Conn.QueryRowContext(ctx, "SELECT color, sides, copies FROM print_configs WHERE order_id = $1", orderID)
	err = row.Scan(&o.Config.Color, &o.Config.Sides, &o.Config.Copies)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, err
	}

	rows, err := r.Conn.QueryContext(ctx, "SELECT "+fileFields+" FROM print_files WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return model.Order{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var f model.PrintFile
		var oid string
		err = rows.Scan(&oid, &f.Name, &f.Size, &f.ContentType, &f.PageCount, &f.StoragePath,
			&f.Config.Color, &f.Config.Sides, &f.Config.Copies, &f.ConfigGroup)
		if err != nil {
			return model.Order{}, err
		}
		o.Files = append(o.Files, f)
	}
	if err = rows.Err(); err != nil {
		return model.Order{}, err
	}

	o.FileCount = len(o.Files)
	o.FileGroups = model.GroupFiles(o.Files)
	return o, nil
}

func (r Repository) GetOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.Conn.QueryContext(ctx, "SELECT "+orderFields+" FROM print_orders ORDER BY timestamp DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []model.Order{}
	index := make(map[string]int)
	for rows.Next() {
		var o model.Order
		err = rows.Scan(&o.ID, &o.StudentName, &o.StudentID, &o.Amount, &o.Status, &o.IsActive, &o.AdditionalDetails, &o.Timestamp)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	cfgRows, err := r.Conn.QueryContext(ctx, "SELECT order_id, color, sides, copies FROM print_configs")
	if err != nil {
		return nil, err
	}
	defer cfgRows.Close()

	for cfgRows.Next() {
		var oid string
		var cfg model.FileConfig
		err = cfgRows.Scan(&oid, &cfg.Color, &cfg.Sides, &cfg.Copies)
		if err != nil {
			return nil, err
		}
		if i, ok := index[oid]; ok {
			orders[i].Config = cfg
		}
	}
	if err = cfgRows.Err(); err != nil {
		return nil, err
	}

	fileRows, err := r.Conn.QueryContext(ctx, "SELECT "+fileFields+" FROM print_files ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer fileRows.Close()

	for fileRows.Next() {
		var oid string
		var f model.PrintFile
		err = fileRows.Scan(&oid, &f.Name, &f.Size, &f.ContentType, &f.PageCount, &f.StoragePath,
			&f.Config.Color, &f.Config.Sides, &f.Config.Copies, &f.ConfigGroup)
		if err != nil {
			return nil, err
		}
		if i, ok := index[oid]; ok {
			orders[i].Files = append(orders[i].Files, f)
		}
	}
	if err = fileRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].FileCount = len(orders[i].Files)
		orders[i].FileGroups = model.GroupFiles(orders[i].Files)
	}

	return orders, nil
}

func (r Repository) HasActiveOrder(ctx context.Context) (bool, error) {
	active := false

	row := r.Conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM print_orders WHERE is_active = true)")
	err := row.Scan(&active)
	if err != nil {
		return false, err
	}

	return active, nil
}

// ActivateNext deactivates every pending order and promotes the FIFO head
// (oldest timestamp, ties by id) in a single transaction, so no reader can
// observe two active orders. Row lock on the head closes the window where
// two clients both activate.
func (r Repository) ActivateNext(ctx context.Context) error {
	tx, err := r.Conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "UPDATE print_orders SET is_active = false WHERE status = $1", model.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("deactivate pending: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE print_orders SET is_active = true WHERE id =
		(SELECT id FROM print_orders WHERE status = $1 ORDER BY timestamp, id LIMIT 1 FOR UPDATE)`, model.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("activate head: %w", err)
	}

	return tx.Commit()
}

func (r Repository) DeactivatePending(ctx context.Context) error {
	_, err := r.Conn.ExecContext(ctx, "UPDATE print_orders SET is_active = false WHERE status = $1", model.OrderStatusPending)
	if err != nil {
		return err
	}
	return nil
}

func (r Repository) UpdateOrderStatus(ctx context.Context, orderID, status string, isActive bool) error {
	res, err := r.Conn.ExecContext(ctx, "UPDATE print_orders SET status = $1, is_active = $2 WHERE id = $3", status, isActive, orderID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r Repository) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := r.Conn.ExecContext(ctx, "DELETE FROM print_orders WHERE id = $1", orderID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
