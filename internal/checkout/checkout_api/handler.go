package checkout_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/checkout"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	CheckoutService *checkout.Service
	Logger          *logger.Logger
}

func NewHandler(checkoutService *checkout.Service, log *logger.Logger) *Handler {
	return &Handler{
		CheckoutService: checkoutService,
		Logger:          log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/checkout", h.Checkout)
	r.Get("/checkout/{holdId}", h.Status)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	buyerID := auth.UserID(r.Context())

	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Checkout: failed to decode request body: %v", err))
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.HoldID == "" {
		http.Error(w, "hold_id is required", http.StatusBadRequest)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Checkout: hold=%s buyer=%s discount=%q", req.HoldID, buyerID, req.DiscountCode))

	resp, err := h.CheckoutService.Checkout(r.Context(), buyerID, req)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Checkout: hold=%s failed: %v", req.HoldID, err))
		utils.WriteError(w, "Checkout failed", err)
		return
	}

	status := http.StatusOK
	if resp.BookingID != "" {
		status = http.StatusCreated
	}
	utils.WriteJSON(w, status, utils.SuccessResponse("Checkout", resp))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	holdID := chi.URLParam(r, "holdId")

	resp, err := h.CheckoutService.Status(r.Context(), holdID)
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("No checkout for hold", holdID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkout status", resp))
}
