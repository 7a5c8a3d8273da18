package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// UserService is the slice of *service.UserService the handlers use.
type UserService interface {
	Create(ctx context.Context, actor service.Principal, in service.CreateUserInput) (model.User, error)
	Get(ctx context.Context, actor service.Principal, id string) (model.User, error)
	List(ctx context.Context, actor service.Principal, q service.ListUsersQuery) (service.UserPage, error)
	Update(ctx context.Context, actor service.Principal, id string, p model.UserPatch) (model.User, error)
	UpdateMe(ctx context.Context, actor service.Principal, p model.UserPatch) (model.User, error)
	Delete(ctx context.Context, actor service.Principal, id string) error
}

type UserHandler struct {
	Users UserService
	Log   *logrus.Logger
}

func NewUserHandler(users UserService, log *logrus.Logger) *UserHandler {
	return &UserHandler{Users: users, Log: log}
}

type createUserReq struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserReq struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

// patch validates the present fields and converts them.
func (r updateUserReq) patch() (model.UserPatch, error) {
	var p model.UserPatch
	if r.Name != nil {
		if err := validateName(*r.Name); err != nil {
			return p, err
		}
		p.Name = r.Name
	}
	if r.Username != nil {
		if err := validateUsername(*r.Username); err != nil {
			return p, err
		}
		p.Username = r.Username
	}
	if r.Email != nil {
		if err := validateEmail(*r.Email); err != nil {
			return p, err
		}
		p.Email = r.Email
	}
	if r.Role != nil {
		role, err := parseRole(*r.Role)
		if err != nil {
			return p, err
		}
		p.Role = &role
	}
	return p, nil
}

func (h *UserHandler) principal(c echo.Context) (service.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return p, service.ErrUnauthenticated
	}
	return p, nil
}

// Create: POST /users (admin).
func (h *UserHandler) Create(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	role := model.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		if role, err = parseRole(req.Role); err != nil {
			return badRequest(c, err.Error())
		}
	}
	if err := firstError(
		validateName(req.Name),
		validateUsername(req.Username),
		validateEmail(req.Email),
		validatePassword(req.Password),
	); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Create(ctx, actor, service.CreateUserInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// List: GET /users?page=&limit=&search=&role= (admin).
func (h *UserHandler) List(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q := service.ListUsersQuery{Page: 1, Limit: 10, Search: c.QueryParam("search")}
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "page must be a positive integer")
		}
		q.Page = n
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			return badRequest(c, "limit must be between 1 and 100")
		}
		q.Limit = n
	}
	if s := c.QueryParam("role"); s != "" {
		if q.Role, err = parseRole(s); err != nil {
			return badRequest(c, err.Error())
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	page, err := h.Users.List(ctx, actor, q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserPageResp(page))
}

// Get: GET /users/:id (admin or self).
func (h *UserHandler) Get(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Get(ctx, actor, c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Update: PATCH /users/:id (admin or self; role changes need admin).
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := req.patch()
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, actor, c.Param("id"), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Delete: DELETE /users/:id (admin, never self).
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Users.Delete(ctx, actor, c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

// Me: GET /users/me.
func (h *UserHandler) Me(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.Get(ctx, actor, actor.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// UpdateMe: PATCH /users/me.  Role is not accepted here.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	actor, err := h.principal(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Role = nil
	p, err := req.patch()
	if err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	u, err := h.Users.UpdateMe(ctx, actor, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
