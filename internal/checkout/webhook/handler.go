package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-booking/internal/checkout"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Handler receives Stripe webhook deliveries and feeds them into the
// checkout reconciler. Stripe retries until it sees 2xx, so any
// transient processing failure returns 5xx and the delivery comes back;
// duplicate deliveries are absorbed by the reconciler's conditional
// status transitions.
type Handler struct {
	checkoutService *checkout.Service
	webhookSecret   string
	logger          *logger.Logger
}

func NewHandler(checkoutService *checkout.Service, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		webhookSecret:   webhookSecret,
		logger:          log,
	}
}

func (h *Handler) Routes(r *gin.Engine) {
	r.POST("/webhooks/stripe", h.HandleStripeWebhook)
}

func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	if h.webhookSecret == "" {
		h.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", "not configured"))
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to read webhook payload: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Webhook signature verification failed: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook signature", err.Error()))
		return
	}

	h.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe event: %s", event.Type))

	var status models.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.PaymentSucceeded
	case "payment_intent.payment_failed":
		status = models.PaymentFailed
	default:
		// Not a payment outcome; acknowledge so Stripe stops retrying.
		c.JSON(http.StatusOK, utils.SuccessResponse("Ignored", event.Type))
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to unmarshal payment intent: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid event data", err.Error()))
		return
	}

	paymentEvent := models.PaymentEvent{
		IntentRef: intent.ID,
		HoldID:    intent.Metadata["hold_id"],
		Status:    status,
		Timestamp: time.Now(),
	}

	if err := h.checkoutService.Reconcile(c.Request.Context(), paymentEvent); err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Reconciliation failed for intent %s: %v", intent.ID, err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process payment event", "reconciliation error"))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Processed", event.Type))
}
