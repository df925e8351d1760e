package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulanet/aulanet-backend/internal/logger"
	"github.com/aulanet/aulanet-backend/internal/repos"
	"github.com/aulanet/aulanet-backend/internal/types"
)

type UsersHandler struct {
	userRepo repos.UserRepo
	log      *logger.Logger
}

func NewUsersHandler(userRepo repos.UserRepo, baseLog *logger.Logger) *UsersHandler {
	return &UsersHandler{
		userRepo: userRepo,
		log:      baseLog.With("handler", "UsersHandler"),
	}
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// POST /api/users
func (h *UsersHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	existing, err := h.userRepo.GetByEmail(c.Request.Context(), nil, req.Email)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if existing != nil {
		RespondError(c, http.StatusConflict, "email_taken", fmt.Errorf("email %s is already registered", req.Email))
		return
	}
	user, err := h.userRepo.Create(c.Request.Context(), nil, &types.User{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	RespondCreated(c, user)
}

// GET /api/users/:id
func (h *UsersHandler) Get(c *gin.Context) {
	userID, ok := ParamUUID(c, "id")
	if !ok {
		return
	}
	user, err := h.userRepo.GetByID(c.Request.Context(), nil, userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if user == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("user %s not found", userID))
		return
	}
	RespondOK(c, user)
}
