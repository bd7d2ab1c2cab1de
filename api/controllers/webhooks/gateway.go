package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/packdrop-backend/api/responses"
	"github.com/angelmondragon/packdrop-backend/internal/webhooks/gateway"
	"github.com/angelmondragon/packdrop-backend/pkg/logger"
	"github.com/angelmondragon/packdrop-backend/pkg/security"
)

// SignatureHeader carries the shared secret hash configured on the gateway dashboard.
const SignatureHeader = "verif-hash"

const maxWebhookBody = 1 << 20

// GatewayWebhookService applies verified gateway callbacks.
type GatewayWebhookService interface {
	HandlePaymentEvent(ctx context.Context, event gateway.Event) error
	HandleTransferEvent(ctx context.Context, event gateway.Event) error
	Alert(ctx context.Context, kind, reference string, cause error)
}

var (
	errSignatureMismatch = errors.New("webhook signature mismatch")
	errMalformedBody     = errors.New("malformed webhook body")
)

// PaymentWebhook handles customer payment callbacks.
func PaymentWebhook(svc GatewayWebhookService, secretHash string, logg *logger.Logger) http.HandlerFunc {
	return gatewayWebhook(gateway.KindPayment, svc, secretHash, logg)
}

// TransferWebhook handles payout transfer callbacks.
func TransferWebhook(svc GatewayWebhookService, secretHash string, logg *logger.Logger) http.HandlerFunc {
	return gatewayWebhook(gateway.KindTransfer, svc, secretHash, logg)
}

// gatewayWebhook always acknowledges with 200 so the gateway stops retrying;
// failures surface through the alert path instead of the status code.
func gatewayWebhook(kind string, svc GatewayWebhookService, secretHash string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer responses.WriteSuccess(w, nil)

		if svc == nil {
			logg.Error(ctx, "gateway webhook service unavailable", errors.New("webhook service not wired"))
			return
		}
		ctx = logg.WithField(ctx, "webhook_kind", kind)

		provided := strings.TrimSpace(r.Header.Get(SignatureHeader))
		switch {
		case provided == "":
			logg.Warn(ctx, "gateway webhook without signature")
		case secretHash == "":
			logg.Warn(ctx, "gateway webhook secret not configured")
		case !security.VerifySecret(provided, secretHash):
			logg.Warn(ctx, "gateway webhook signature mismatch")
			svc.Alert(ctx, kind, "", errSignatureMismatch)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			svc.Alert(ctx, kind, "", err)
			return
		}
		var event gateway.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			svc.Alert(ctx, kind, "", errors.Join(errMalformedBody, err))
			return
		}

		// The service alerts on its own failures.
		switch kind {
		case gateway.KindTransfer:
			_ = svc.HandleTransferEvent(ctx, event)
		default:
			_ = svc.HandlePaymentEvent(ctx, event)
		}
	}
}
