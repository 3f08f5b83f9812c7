package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/unimarket/backend/internal/service"
)

type ChatHandler struct {
	svc service.ChatService
}

func NewChatHandler(svc service.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

// List handles GET /conversations.
func (h *ChatHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convs, err := h.svc.ListConversations(c.Request().Context(), uid)
	if err != nil {
		return chatError(c, err, "failed to fetch conversations")
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": convs})
}

// ResolveByProduct handles GET /conversations/product/:productId. It returns
// the caller's conversation for the product, creating one on first contact.
func (h *ChatHandler) ResolveByProduct(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	productID, err := strconv.ParseUint(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid product id"))
	}
	detail, err := h.svc.ResolveOrCreate(c.Request().Context(), productID, uid)
	if err != nil {
		return chatError(c, err, "failed to resolve conversation")
	}
	return c.JSON(http.StatusOK, map[string]any{"conversation": detail})
}

// Get handles GET /conversations/:id.
func (h *ChatHandler) Get(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	detail, err := h.svc.GetConversation(c.Request().Context(), convID, uid)
	if err != nil {
		return chatError(c, err, "failed to fetch conversation")
	}
	return c.JSON(http.StatusOK, map[string]any{"conversation": detail})
}

// ListMessages handles GET /conversations/:id/messages. Fetching the history
// marks the counterpart's messages as read.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	msgs, err := h.svc.ListMessages(c.Request().Context(), convID, uid)
	if err != nil {
		return chatError(c, err, "failed to fetch messages")
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": msgs})
}

// SendMessage handles POST /conversations/:id/messages.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.SendMessage(c.Request().Context(), convID, uid, req.Content)
	if err != nil {
		return chatError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, map[string]any{"message": msg})
}

// MarkRead handles POST /conversations/:id/read.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if _, err := h.svc.MarkRead(c.Request().Context(), convID, uid); err != nil {
		return chatError(c, err, "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func chatError(c echo.Context, err error, internalMsg string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrSelfChat):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "cannot chat about your own product"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not a participant"))
	case errors.Is(err, service.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "message body is required"))
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", internalMsg))
	}
}
