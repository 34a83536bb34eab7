package service

import (
	"context"
	"time"

	"github.com/flexprice/billingcore/internal/domain/invoice"
	"github.com/flexprice/billingcore/internal/interfaces"
	"github.com/flexprice/billingcore/internal/jobs"
	"github.com/flexprice/billingcore/internal/types"
	"github.com/samber/lo"
)

// InvoiceService moves invoices out of their grace period and hands finalized
// invoices to notification and collection
type InvoiceService interface {
	GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error)

	// FinalizeInvoice turns a DRAFT invoice into PENDING, or PAID when nothing is
	// left to collect. Finalizing a non-draft invoice is a no-op.
	FinalizeInvoice(ctx context.Context, id string, now time.Time) (*invoice.Invoice, error)

	// SweepGracePeriods enqueues finalization of every draft whose grace period ended
	SweepGracePeriods(ctx context.Context, now time.Time) (int, error)

	// DispatchFinalized notifies the customer and, for a collectible invoice on a
	// subscription with a saved payment method, enqueues an auto-charge
	DispatchFinalized(ctx context.Context, inv *invoice.Invoice)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InvoiceRepo.Get(ctx, id)
}

func (s *invoiceService) FinalizeInvoice(ctx context.Context, id string, now time.Time) (*invoice.Invoice, error) {
	var inv *invoice.Invoice
	var finalized bool

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !inv.IsDraft() {
			return nil
		}

		settings, err := s.billingSettings(ctx)
		if err != nil {
			return err
		}

		inv.FinalizedAt = lo.ToPtr(now)
		inv.DueDate = lo.ToPtr(addDays(now, settings.NetTermDays))
		if inv.Amount.IsZero() {
			inv.InvoiceStatus = types.InvoiceStatusPaid
			inv.PaidAt = lo.ToPtr(now)
		} else {
			inv.InvoiceStatus = types.InvoiceStatusPending
		}
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !finalized {
		s.Logger.Debugw("invoice already finalized", "invoice_id", id, "status", inv.InvoiceStatus)
		return inv, nil
	}

	s.Logger.Infow("finalized invoice",
		"invoice_id", inv.ID,
		"status", inv.InvoiceStatus,
		"amount", inv.Amount)

	s.publishWebhook(ctx, types.WebhookEventInvoiceFinalized, inv)
	s.DispatchFinalized(ctx, inv)
	return inv, nil
}

func (s *invoiceService) SweepGracePeriods(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.InvoiceRepo.ListDraftsPastGrace(ctx, now, s.Config.Billing.SweepBatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if err := s.Jobs.Enqueue(ctx, s.Config.Jobs.FinalizeTopic, jobs.FinalizeInvoice{InvoiceID: id}); err != nil {
			s.Logger.Errorw("failed to enqueue invoice finalization", "invoice_id", id, "error", err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *invoiceService) DispatchFinalized(ctx context.Context, inv *invoice.Invoice) {
	if inv.IsDraft() {
		return
	}

	s.notifyIssued(ctx, inv)

	switch inv.InvoiceStatus {
	case types.InvoiceStatusPaid:
		s.publishWebhook(ctx, types.WebhookEventInvoicePaid, inv)
	case types.InvoiceStatusPending:
		if !inv.Amount.IsPositive() {
			return
		}
		sub, err := s.SubRepo.Get(ctx, inv.SubscriptionID)
		if err != nil {
			s.Logger.Errorw("failed to load subscription for auto-charge",
				"invoice_id", inv.ID,
				"subscription_id", inv.SubscriptionID,
				"error", err)
			return
		}
		if sub.PaymentMethodID == "" {
			return
		}
		if err := s.Jobs.Enqueue(ctx, s.Config.Jobs.ChargeTopic, jobs.ChargeInvoice{InvoiceID: inv.ID}); err != nil {
			s.Logger.Errorw("failed to enqueue auto-charge", "invoice_id", inv.ID, "error", err)
		}
	}
}

func (s *invoiceService) notifyIssued(ctx context.Context, inv *invoice.Invoice) {
	if s.Notifier == nil {
		return
	}

	cust, err := s.CustomerRepo.Get(ctx, inv.CustomerID)
	if err != nil {
		s.Logger.Errorw("failed to load customer for invoice notification",
			"invoice_id", inv.ID,
			"customer_id", inv.CustomerID,
			"error", err)
		return
	}

	var attachments []interfaces.Attachment
	if s.Renderer != nil {
		doc, err := s.Renderer.Render(ctx, interfaces.DocumentSnapshot{
			Invoice:  inv,
			Customer: cust,
			Tenant:   types.GetTenantID(ctx),
		})
		if err != nil {
			// the notice still goes out without the document
			s.Logger.Errorw("failed to render invoice document", "invoice_id", inv.ID, "error", err)
		} else {
			attachments = append(attachments, interfaces.Attachment{
				Name:        inv.InvoiceNumber + ".pdf",
				ContentType: "application/pdf",
				Content:     doc,
			})
		}
	}

	err = s.Notifier.Send(ctx, &interfaces.Notification{
		TenantID:  types.GetTenantID(ctx),
		Recipient: cust.Email,
		Template:  types.NotificationInvoiceIssued,
		Context: map[string]interface{}{
			"invoice_id":     inv.ID,
			"invoice_number": inv.InvoiceNumber,
			"amount":         inv.Amount.String(),
			"currency":       inv.Currency,
			"due_date":       inv.DueDate,
			"status":         inv.InvoiceStatus,
		},
		Attachments: attachments,
	})
	if err != nil {
		s.Logger.Errorw("failed to queue invoice notification", "invoice_id", inv.ID, "error", err)
	}
}
