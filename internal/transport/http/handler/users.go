package handler

import (
	"net/http"
	"strconv"

	"github.com/gigmarket-api/internal/application/user"
	"github.com/gigmarket-api/internal/domain"
	"github.com/gigmarket-api/internal/transport/http/middleware"
	"github.com/gigmarket-api/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
)

// UserHandler handles profile and user administration endpoints.
type UserHandler struct {
	svc user.Service
	rs  *respond.Responder
}

func NewUserHandler(svc user.Service, rs *respond.Responder) *UserHandler {
	return &UserHandler{svc: svc, rs: rs}
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.rs.Fail(w, r, http.StatusUnauthorized, "Token was not provided!")
		return
	}
	h.rs.JSON(w, http.StatusOK, u, "Profile fetched successfully")
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.rs.Fail(w, r, http.StatusUnauthorized, "Token was not provided!")
		return
	}
	var req domain.UpdateProfileRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	updated, err := h.svc.UpdateProfile(r.Context(), u.UserID, req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, updated, "Profile updated successfully")
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, next, err := h.svc.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, UserPage{Users: users, NextCursor: next}, "Users fetched successfully")
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, u, "User fetched successfully")
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateRoleRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	u, err := h.svc.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, u, "User role updated successfully")
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	u, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, u, "User created successfully")
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	u, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, u, "User updated successfully")
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, nil, "User deleted successfully")
}
