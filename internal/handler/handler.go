// Package handler exposes the coupon engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/verdora/coupon-engine/internal/domain/coupon"
	"github.com/verdora/coupon-engine/internal/domain/user"
)

// Handler holds the dependencies of all HTTP endpoints.
type Handler struct {
	coupons *coupon.Service
	users   user.Repository
}

// New creates a Handler.
func New(coupons *coupon.Service, users user.Repository) *Handler {
	return &Handler{coupons: coupons, users: users}
}

// Routes returns the router with all coupon endpoints mounted, relative to
// the mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/coupons/apply", h.ApplyCoupon)
	r.Get("/coupons/{code}", h.GetCoupon)
	r.Post("/admin/coupons", h.CreateCoupon)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func logError(r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
}
