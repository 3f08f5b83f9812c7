package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/unimarket/backend/internal/model"
	"github.com/unimarket/backend/internal/repository"
)

type UserHandler struct {
	repo repository.UserRepository
}

func NewUserHandler(repo repository.UserRepository) *UserHandler {
	return &UserHandler{repo: repo}
}

type PublicUserResponse struct {
	UID      string  `json:"uid"`
	Nickname string  `json:"nickname"`
	PhotoURL *string `json:"photoUrl"`
}

type ProfileRequest struct {
	Nickname string  `json:"nickname"`
	PhotoURL *string `json:"photoUrl"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	user, err := h.repo.FindByUID(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
	}
	return c.JSON(http.StatusOK, PublicUserResponse{
		UID:      user.UID,
		Nickname: user.Nickname,
		PhotoURL: user.PhotoURL,
	})
}

// UpsertProfile handles PUT /me/profile, keeping the display name chat
// attaches to messages in sync with the account.
func (h *UserHandler) UpsertProfile(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if req.Nickname == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "nickname is required"))
	}
	user := &model.User{UID: uid, Nickname: req.Nickname, PhotoURL: req.PhotoURL}
	if err := h.repo.Upsert(c.Request().Context(), user); err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to save profile"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
