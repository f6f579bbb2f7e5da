package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/innohealth/notify-engine/internal/domain"
	"github.com/innohealth/notify-engine/internal/repository"
	"github.com/innohealth/notify-engine/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type NotificationService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.Notification, error)
	CreateBulk(ctx context.Context, recipientIDs []string, input service.CreateInput) ([]domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	MarkAsRead(ctx context.Context, id string) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, recipientID string) (int64, error)
	Stats(ctx context.Context, recipientID string) (repository.StatsSummary, error)
	Delete(ctx context.Context, id string) error
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Post("/notifications/bulk", h.CreateBulk)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/stats", h.GetStats)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Post("/notifications/read-all", h.MarkAllRead)
	v1.Post("/notifications/:id/read", h.MarkRead)
	v1.Delete("/notifications/:id", h.DeleteNotification)

	return nil
}

type createNotificationRequest struct {
	RecipientID  string         `json:"recipientId"`
	SenderID     *string        `json:"senderId,omitempty"`
	Type         string         `json:"type"`
	Priority     string         `json:"priority"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	ActionURL    *string        `json:"actionUrl,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ScheduledFor *time.Time     `json:"scheduledFor,omitempty"`
}

type createBulkRequest struct {
	RecipientIDs []string                  `json:"recipientIds"`
	Notification createNotificationRequest `json:"notification"`
}

type markAllReadRequest struct {
	RecipientID string `json:"recipientId"`
}

type notificationResponse struct {
	ID            string         `json:"id"`
	RecipientID   string         `json:"recipientId"`
	SenderID      *string        `json:"senderId,omitempty"`
	Type          string         `json:"type"`
	Priority      string         `json:"priority"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	ActionURL     *string        `json:"actionUrl,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Read          bool           `json:"read"`
	ReadAt        *time.Time     `json:"readAt,omitempty"`
	EmailSent     bool           `json:"emailSent"`
	EmailSentAt   *time.Time     `json:"emailSentAt,omitempty"`
	ScheduledFor  *time.Time     `json:"scheduledFor,omitempty"`
	DispatchState string         `json:"dispatchState"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type createBulkResponse struct {
	RequestedCount int                    `json:"requestedCount"`
	CreatedCount   int                    `json:"createdCount"`
	Notifications  []notificationResponse `json:"notifications"`
	Warning        string                 `json:"warning,omitempty"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

type statsResponse struct {
	RecipientID string           `json:"recipientId"`
	Total       int64            `json:"total"`
	Unread      int64            `json:"unread"`
	ByType      map[string]int64 `json:"byType"`
	ByPriority  map[string]int64 `json:"byPriority"`
}

type markAllReadResponse struct {
	RecipientID string `json:"recipientId"`
	Updated     int64  `json:"updated"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, err := requestToCreateInput(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), input)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) CreateBulk(c *fiber.Ctx) error {
	var req createBulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if len(req.RecipientIDs) == 0 {
		return toHTTPError(fmt.Errorf("%w: recipientIds is required", domain.ErrValidation))
	}

	input, err := requestToCreateInput(req.Notification)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.CreateBulk(c.Context(), req.RecipientIDs, input)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return toHTTPError(err)
		}
		if len(created) == 0 {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(createBulkResponse{
			RequestedCount: len(req.RecipientIDs),
			CreatedCount:   len(created),
			Notifications:  toNotificationResponses(created),
			Warning:        err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(createBulkResponse{
		RequestedCount: len(req.RecipientIDs),
		CreatedCount:   len(created),
		Notifications:  toNotificationResponses(created),
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Limit:  params.Limit,
			Offset: params.Offset,
			Total:  total,
		},
	})
}

func (h *NotificationHandler) GetStats(c *fiber.Ctx) error {
	recipientID := strings.TrimSpace(c.Query("recipientId"))

	stats, err := h.service.Stats(c.Context(), recipientID)
	if err != nil {
		return toHTTPError(err)
	}

	byType := make(map[string]int64, len(stats.ByType))
	for t, count := range stats.ByType {
		byType[t.String()] = count
	}
	byPriority := make(map[string]int64, len(stats.ByPriority))
	for p, count := range stats.ByPriority {
		byPriority[p.String()] = count
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		RecipientID: recipientID,
		Total:       stats.Total,
		Unread:      stats.Unread,
		ByType:      byType,
		ByPriority:  byPriority,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	notification, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	notification, err := h.service.MarkAsRead(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	var req markAllReadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.MarkAllAsRead(c.Context(), req.RecipientID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(markAllReadResponse{
		RecipientID: strings.TrimSpace(req.RecipientID),
		Updated:     updated,
	})
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	if err := h.service.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Limit:  c.QueryInt("limit", defaultListLimit),
		Offset: c.QueryInt("offset", 0),
	}

	if params.Limit < 1 || params.Limit > maxListLimit {
		return repository.ListParams{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxListLimit)
	}
	if params.Offset < 0 {
		return repository.ListParams{}, fmt.Errorf("%w: offset must be >= 0", domain.ErrValidation)
	}

	if recipientID := strings.TrimSpace(c.Query("recipientId")); recipientID != "" {
		params.RecipientID = &recipientID
	}

	if rawType := strings.TrimSpace(c.Query("type")); rawType != "" {
		notifType, err := domain.ParseTypeFromString(rawType)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Type = &notifType
	}

	if rawPriority := strings.TrimSpace(c.Query("priority")); rawPriority != "" {
		priority, err := domain.ParsePriorityFromString(rawPriority)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Priority = &priority
	}

	if rawRead := strings.TrimSpace(c.Query("read")); rawRead != "" {
		switch strings.ToLower(rawRead) {
		case "true":
			read := true
			params.Read = &read
		case "false":
			read := false
			params.Read = &read
		default:
			return repository.ListParams{}, fmt.Errorf("%w: read must be true or false", domain.ErrValidation)
		}
	}

	return params, nil
}

func requestToCreateInput(req createNotificationRequest) (service.CreateInput, error) {
	notifType, err := domain.ParseTypeFromString(req.Type)
	if err != nil {
		return service.CreateInput{}, err
	}

	priority := domain.DefaultPriority
	if strings.TrimSpace(req.Priority) != "" {
		priority, err = domain.ParsePriorityFromString(req.Priority)
		if err != nil {
			return service.CreateInput{}, err
		}
	}

	return service.CreateInput{
		RecipientID:  strings.TrimSpace(req.RecipientID),
		SenderID:     req.SenderID,
		Type:         notifType,
		Priority:     priority,
		Title:        strings.TrimSpace(req.Title),
		Message:      strings.TrimSpace(req.Message),
		ActionURL:    req.ActionURL,
		Metadata:     req.Metadata,
		ScheduledFor: req.ScheduledFor,
	}, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		SenderID:      n.SenderID,
		Type:          n.Type.String(),
		Priority:      n.Priority.String(),
		Title:         n.Title,
		Message:       n.Message,
		ActionURL:     n.ActionURL,
		Metadata:      n.Metadata,
		Read:          n.Read,
		ReadAt:        n.ReadAt,
		EmailSent:     n.EmailSent,
		EmailSentAt:   n.EmailSentAt,
		ScheduledFor:  n.ScheduledFor,
		DispatchState: n.DispatchState.String(),
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
