package internal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/printq/printq/internal/model"
)

const sseKeepalive = 30 * time.Second

type Handlers struct {
	Service  IService
	Notifier *Notifier
	cfg      *config
	logger   *zap.SugaredLogger
}

func NewHandlers(service IService, notifier *Notifier, cfg *config, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: service, Notifier: notifier, cfg: cfg, logger: logger}
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var i model.LoginInput

	if err := c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on login request: %s", err.Error())
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if i.Login != h.cfg.StaffLogin || i.Password != h.cfg.StaffPassword {
		h.logger.Errorf("Error on login request: %s", ErrInvalidCredentials)
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	t, err := h.staffToken()
	if err != nil {
		h.logger.Errorf("Error on login request: %s", err.Error())
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	setAuthCookie(c, t)
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) SubmitOrder(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": "multipart form expected"})
	}

	input := model.CreateOrderInput{
		StudentName:       c.FormValue("studentName"),
		StudentID:         c.FormValue("studentId"),
		AdditionalDetails: c.FormValue("additionalDetails"),
	}

	input.Amount, err = decimal.NewFromString(c.FormValue("amount", "0"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": "invalid amount"})
	}

	copies, err := strconv.Atoi(c.FormValue("copies", "1"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": "invalid copies"})
	}
	input.Config = model.FileConfig{
		Color:  c.FormValue("color", model.ColorBW),
		Sides:  c.FormValue("sides", model.SidesSingle),
		Copies: copies,
	}

	// optional per-file configs and page counts, parallel to the files field
	var fileConfigs []model.FileConfig
	if raw := c.FormValue("fileConfigs"); raw != "" {
		if err = json.Unmarshal([]byte(raw), &fileConfigs); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": "invalid fileConfigs"})
		}
	}
	var pageCounts []int
	if raw := c.FormValue("pageCounts"); raw != "" {
		if err = json.Unmarshal([]byte(raw), &pageCounts); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": "invalid pageCounts"})
		}
	}

	for i, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			h.logger.Errorf("Error on submit order request: %s", err.Error())
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		defer f.Close()

		upload := model.FileUpload{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Data:        f,
		}
		if i < len(fileConfigs) {
			cfg := fileConfigs[i]
			upload.Config = &cfg
		}
		if i < len(pageCounts) {
			upload.PageCount = pageCounts[i]
		}
		input.Files = append(input.Files, upload)
	}

	id, err := h.Service.SubmitOrder(c.Context(), input)
	if err != nil {
		h.logger.Errorf("Error on submit order request: %s", err.Error())
		if errors.Is(err, ErrMissingStudentInfo) || errors.Is(err, ErrNoFiles) || errors.Is(err, ErrInvalidConfig) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on submit order request", "data": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orders, err := h.Service.GetOrders(c.Context())
	if err != nil {
		h.logger.Errorf("Error on get orders request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on get orders request", "data": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) GetOrder(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	order, err := h.Service.GetOrderByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		h.logger.Errorf("Error on get order request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on get order request", "data": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *Handlers) CompleteOrder(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	err := h.Service.CompleteOrder(c.Context(), c.Params("id"))
	if err != nil {
		h.logger.Errorf("Error on complete order request: %s", err.Error())
		if errors.Is(err, ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "error", "message": "Error on complete order request", "data": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on complete order request", "data": err.Error()})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) DeleteOrder(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	err := h.Service.DeleteOrder(c.Context(), c.Params("id"))
	if err != nil {
		h.logger.Errorf("Error on delete order request: %s", err.Error())
		if errors.Is(err, ErrOrderNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "error", "message": "Error on delete order request", "data": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on delete order request", "data": err.Error()})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) ResetQueue(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	if err := h.Service.ResetQueueStatus(c.Context()); err != nil {
		h.logger.Errorf("Error on queue reset request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on queue reset request", "data": err.Error()})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) Stats(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	orders, err := h.Service.GetOrders(c.Context())
	if err != nil {
		h.logger.Errorf("Error on stats request: %s", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "Error on stats request", "data": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(ComputeStats(orders, time.Now()))
}

// Events streams the live order list plus recomputed stats to the staff
// dashboard as server-sent events.
func (h *Handlers) Events(c *fiber.Ctx) error {
	if err := h.requireStaff(c); err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	updates := make(chan []model.Order, 1)
	unsubscribe := h.Notifier.Subscribe(func(orders []model.Order) {
		// drop the stale snapshot when the client is slow
		select {
		case updates <- orders:
		default:
			select {
			case <-updates:
			default:
			}
			updates <- orders
		}
	})

	// snapshot before streaming so the dashboard never starts blank
	orders, err := h.Service.GetOrders(c.Context())
	if err != nil {
		unsubscribe()
		h.logger.Errorf("Error on events request: %s", err.Error())
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		if err := writeOrdersEvent(w, orders); err != nil {
			return
		}

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case next := <-updates:
				if err := writeOrdersEvent(w, next); err != nil {
					return
				}
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

func writeOrdersEvent(w *bufio.Writer, orders []model.Order) error {
	payload := struct {
		Orders []model.Order `json:"orders"`
		Stats  Stats         `json:"stats"`
	}{Orders: orders, Stats: ComputeStats(orders, time.Now())}

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: orders\ndata: %s\n\n", b)
	return w.Flush()
}

func (h *Handlers) staffToken() (string, error) {
	claims := jwt.MapClaims{
		"role": "staff",
		"exp":  time.Now().Add(time.Hour * 12).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	t, err := token.SignedString([]byte(h.cfg.SecretKey))
	if err != nil {
		return "", err
	}

	return t, nil
}

func (h *Handlers) requireStaff(c *fiber.Ctx) error {
	tokenString := c.Cookies("token")
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.cfg.SecretKey), nil
	})
	if err != nil {
		return err
	}

	if role, _ := claims["role"].(string); role != "staff" {
		return ErrInvalidCredentials
	}
	return nil
}

func setAuthCookie(c *fiber.Ctx, token string) {
	cookie := &fiber.Cookie{
		Name:    "token",
		Value:   token,
		Path:    "/",
		Expires: time.Now().Add(12 * time.Hour),
	}

	c.Cookie(cookie)
}
