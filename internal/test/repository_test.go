package test

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/printq/printq/internal"
	"github.com/printq/printq/internal/model"
)

var _ = Describe("Repository", func() {
	var (
		repo internal.Repository
		mock sqlmock.Sqlmock
	)
	BeforeEach(func() {
		db, m, err := sqlmock.New()
		Expect(err).ShouldNot(HaveOccurred())

		mock = m
		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		repo = internal.Repository{
			Conn:   db,
			Logger: logger.Sugar(),
		}
	})
	AfterEach(func() {
		err := mock.ExpectationsWereMet()
		Expect(err).ShouldNot(HaveOccurred())
	})
	Context("Repository tests", func() {
		orderColumns := []string{"id", "student_name", "student_id", "amount", "status", "is_active", "additional_details", "timestamp"}
		fileColumns := []string{"order_id", "file_name", "file_size", "file_type", "page_count", "storage_path", "config_color", "config_sides", "config_copies", "config_group"}

		It("GetOrders without error", func() {
			t := time.Now()
			id := "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21"

			orderRows := sqlmock.NewRows(orderColumns).
				AddRow(id, "Asha Rao", "CS2104", decimal.NewFromInt(24), "pending", true, "", t)
			mock.ExpectQuery("SELECT (.+) FROM print_orders ORDER BY timestamp DESC").
				WillReturnRows(orderRows).RowsWillBeClosed()

			cfgRows := sqlmock.NewRows([]string{"order_id", "color", "sides", "copies"}).
				AddRow(id, "bw", "single", 2)
			mock.ExpectQuery("SELECT order_id, color, sides, copies FROM print_configs").
				WillReturnRows(cfgRows).RowsWillBeClosed()

			fileRows := sqlmock.NewRows(fileColumns).
				AddRow(id, "notes.pdf", 2048, "application/pdf", 6, id+"/notes.pdf", "bw", "single", 2, "bw-single-2")
			mock.ExpectQuery("SELECT (.+) FROM print_files ORDER BY id").
				WillReturnRows(fileRows).RowsWillBeClosed()

			orders, err := repo.GetOrders(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(orders).Should(HaveLen(1))
			Expect(orders[0].FileCount).Should(Equal(1))
			Expect(orders[0].Config.Copies).Should(Equal(2))
			Expect(orders[0].FileGroups).Should(HaveLen(1))
			Expect(orders[0].FileGroups[0].GroupKey).Should(Equal("bw-single-2"))
		})
		It("GetOrders with error", func() {
			mock.ExpectQuery("SELECT (.+) FROM print_orders ORDER BY timestamp DESC").
				WillReturnError(errors.New("some error"))

			_, err := repo.GetOrders(context.Background())
			Expect(err).Should(HaveOccurred())
		})
		It("GetOrderByID without error", func() {
			t := time.Now()
			id := "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21"

			orderRows := sqlmock.NewRows(orderColumns).
				AddRow(id, "Asha Rao", "CS2104", decimal.NewFromInt(24), "pending", false, "spiral bind", t)
			mock.ExpectQuery("SELECT (.+) FROM print_orders WHERE id = \\$1").
				WithArgs(id).WillReturnRows(orderRows).RowsWillBeClosed()

			cfgRows := sqlmock.NewRows([]string{"color", "sides", "copies"}).
				AddRow("color", "double", 1)
			mock.ExpectQuery("SELECT color, sides, copies FROM print_configs WHERE order_id = \\$1").
				WithArgs(id).WillReturnRows(cfgRows).RowsWillBeClosed()

			fileRows := sqlmock.NewRows(fileColumns).
				AddRow(id, "report.pdf", 4096, "application/pdf", 12, id+"/report.pdf", "color", "double", 1, "color-double-1")
			mock.ExpectQuery("SELECT (.+) FROM print_files WHERE order_id = \\$1 ORDER BY id").
				WithArgs(id).WillReturnRows(fileRows).RowsWillBeClosed()

			o, err := repo.GetOrderByID(context.Background(), id)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(o.StudentName).Should(Equal("Asha Rao"))
			Expect(o.Files).Should(HaveLen(1))
		})
		It("GetOrderByID with error not found", func() {
			mock.ExpectQuery("SELECT (.+) FROM print_orders WHERE id = \\$1").
				WithArgs("missing").WillReturnError(sql.ErrNoRows)

			_, err := repo.GetOrderByID(context.Background(), "missing")
			Expect(err).Should(HaveOccurred())
			Expect(err).Should(Equal(internal.ErrOrderNotFound))
		})
		It("HasActiveOrder without error", func() {
			rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
			mock.ExpectQuery("SELECT EXISTS").WillReturnRows(rows).RowsWillBeClosed()

			active, err := repo.HasActiveOrder(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(active).Should(BeTrue())
		})
		It("CreateOrder without error", func() {
			o := model.Order{
				ID:          "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21",
				StudentName: "Asha Rao",
				StudentID:   "CS2104",
				Amount:      decimal.NewFromInt(24),
				Status:      model.OrderStatusPending,
				Timestamp:   time.Now(),
				Config:      model.FileConfig{Color: "bw", Sides: "single", Copies: 2},
			}
			files := []model.PrintFile{{
				Name: "notes.pdf", Size: 2048, ContentType: "application/pdf",
				PageCount: 6, StoragePath: o.ID + "/notes.pdf",
				Config: o.Config, ConfigGroup: o.Config.GroupKey(),
			}}

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO print_orders (.+) VALUES (.+)").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("INSERT INTO print_configs (.+) VALUES (.+)").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectExec("INSERT INTO print_files (.+) VALUES (.+)").
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectCommit()

			err := repo.CreateOrder(context.Background(), o, files)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("CreateOrder with error", func() {
			o := model.Order{ID: "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21"}

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO print_orders (.+) VALUES (.+)").
				WillReturnError(errors.New("some error"))
			mock.ExpectRollback()

			err := repo.CreateOrder(context.Background(), o, nil)
			Expect(err).Should(HaveOccurred())
		})
		It("ActivateNext deactivates pending orders and promotes the head", func() {
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE print_orders SET is_active = false WHERE status = \\$1").
				WithArgs(model.OrderStatusPending).WillReturnResult(sqlmock.NewResult(0, 3))
			mock.ExpectExec("UPDATE print_orders SET is_active = true WHERE id =").
				WithArgs(model.OrderStatusPending).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := repo.ActivateNext(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("ActivateNext with error rolls back", func() {
			mock.ExpectBegin()
			mock.ExpectExec("UPDATE print_orders SET is_active = false WHERE status = \\$1").
				WithArgs(model.OrderStatusPending).WillReturnError(errors.New("some error"))
			mock.ExpectRollback()

			err := repo.ActivateNext(context.Background())
			Expect(err).Should(HaveOccurred())
		})
		It("DeactivatePending without error", func() {
			mock.ExpectExec("UPDATE print_orders SET is_active = false WHERE status = \\$1").
				WithArgs(model.OrderStatusPending).WillReturnResult(sqlmock.NewResult(0, 2))

			err := repo.DeactivatePending(context.Background())
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("UpdateOrderStatus without error", func() {
			id := "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21"

			mock.ExpectExec("UPDATE print_orders SET status = \\$1, is_active = \\$2 WHERE id = \\$3").
				WithArgs(model.OrderStatusCompleted, false, id).WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.UpdateOrderStatus(context.Background(), id, model.OrderStatusCompleted, false)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("UpdateOrderStatus with error not found", func() {
			mock.ExpectExec("UPDATE print_orders SET status = \\$1, is_active = \\$2 WHERE id = \\$3").
				WithArgs(model.OrderStatusCompleted, false, "missing").WillReturnResult(sqlmock.NewResult(0, 0))

			err := repo.UpdateOrderStatus(context.Background(), "missing", model.OrderStatusCompleted, false)
			Expect(err).Should(HaveOccurred())
			Expect(err).Should(Equal(internal.ErrOrderNotFound))
		})
		It("DeleteOrder without error", func() {
			id := "8a1f031b-24b8-4f34-b7a6-4b6e8a0c3f21"

			mock.ExpectExec("DELETE FROM print_orders WHERE id = \\$1").
				WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))

			err := repo.DeleteOrder(context.Background(), id)
			Expect(err).ShouldNot(HaveOccurred())
		})
		It("DeleteOrder with error not found", func() {
			mock.ExpectExec("DELETE FROM print_orders WHERE id = \\$1").
				WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

			err := repo.DeleteOrder(context.Background(), "missing")
			Expect(err).Should(HaveOccurred())
			Expect(err).Should(Equal(internal.ErrOrderNotFound))
		})
	})
})
