package v1

import (
	"io"
	"net/http"

	ierr "github.com/flexprice/billingcore/internal/errors"
	"github.com/flexprice/billingcore/internal/logger"
	"github.com/flexprice/billingcore/internal/service"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds provider payloads
const maxWebhookBody = 1 << 20

type ProviderWebhookHandler struct {
	paymentService service.PaymentService
	log            *logger.Logger
}

func NewProviderWebhookHandler(paymentService service.PaymentService, log *logger.Logger) *ProviderWebhookHandler {
	return &ProviderWebhookHandler{
		paymentService: paymentService,
		log:            log,
	}
}

// @Summary Payment provider webhook
// @Description Signed callback from a payment provider. Redeliveries settle nothing twice.
// @Tags Webhooks
// @Param provider path string true "Provider" Enums(stripe)
// @Param tenant_id path string true "Tenant"
// @Success 200
// @Failure 400 {object} errors.ErrorResponse
// @Router /webhooks/{provider}/{tenant_id} [post]
func (h *ProviderWebhookHandler) Handle(c *gin.Context) {
	provider := types.ProviderType(c.Param("provider"))
	if provider != types.ProviderStripe {
		c.Error(ierr.NewError("unknown payment provider").
			WithHintf("Provider %s is not supported", provider).
			Mark(ierr.ErrNotFound))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook body").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.paymentService.HandleProviderWebhook(c.Request.Context(), payload, signature); err != nil {
		h.log.WithContext(c.Request.Context()).Warnw("provider webhook rejected",
			"provider", provider,
			"error", err,
		)
		c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
