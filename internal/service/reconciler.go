package service

import (
	"context"

	"github.com/flexprice/clockwork/internal/domain/invoice"
	ierr "github.com/flexprice/clockwork/internal/errors"
	"github.com/flexprice/clockwork/internal/types"
)

// InvoiceReconciler settles an entity's outstanding invoices after a clock
// advance. It is safe to call repeatedly: paid invoices are never touched.
type InvoiceReconciler interface {
	Reconcile(ctx context.Context, entityID string) (*ReconcileResult, error)
	// ReconcileUntilSettled repeats Reconcile until a pass neither pays nor
	// finalizes anything, or passes is reached.
	ReconcileUntilSettled(ctx context.Context, entityID string, passes int) (*ReconcileResult, error)
}

type ReconcileResult struct {
	PaidCount      int
	UnpaidCount    int
	Finalized      int
	FinalizeFailed int
	Skipped        int
	PaidInvoiceIDs []string
}

type invoiceReconciler struct {
	ServiceParams
}

func NewInvoiceReconciler(params ServiceParams) InvoiceReconciler {
	return &invoiceReconciler{
		ServiceParams: params,
	}
}

func (s *invoiceReconciler) Reconcile(ctx context.Context, entityID string) (*ReconcileResult, error) {
	var invoices []*invoice.Invoice
	err := s.remote(ctx, func() error {
		var err error
		invoices, err = s.Platform.Invoices().List(ctx, entityID)
		return err
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Could not list invoices for %s", entityID).
			Mark(ierr.ErrHTTPClient)
	}

	result := &ReconcileResult{}
	for _, inv := range invoices {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		s.settle(ctx, inv, result)
	}

	s.Metrics.InvoicesReconciled(result.PaidCount, result.UnpaidCount, result.Finalized)
	s.Logger.Debugw("reconciled invoices",
		"entity_id", entityID,
		"paid", result.PaidCount,
		"unpaid", result.UnpaidCount,
		"finalized", result.Finalized,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *invoiceReconciler) settle(ctx context.Context, inv *invoice.Invoice, result *ReconcileResult) {
	if !inv.Status.IsPayable() {
		result.Skipped++
		return
	}

	if inv.Status == types.InvoiceStatusDraft {
		err := s.remote(ctx, func() error {
			_, err := s.Platform.Invoices().Finalize(ctx, inv.ID)
			return err
		})
		if err != nil {
			// retried by the next pass
			result.FinalizeFailed++
			s.Logger.Warnw("failed to finalize invoice", "invoice_id", inv.ID, "error", err)
		} else {
			result.Finalized++
		}
	}

	current := inv
	err := s.remote(ctx, func() error {
		fresh, err := s.Platform.Invoices().Retrieve(ctx, inv.ID)
		if err == nil {
			current = fresh
		}
		return err
	})
	if err != nil {
		s.Logger.Warnw("failed to refresh invoice, using listed status", "invoice_id", inv.ID, "error", err)
	}
	if !current.Status.IsPayable() {
		result.Skipped++
		return
	}

	// Pay is not retried: a dropped response may still have charged the card
	if _, err := s.Platform.Invoices().Pay(ctx, inv.ID); err != nil {
		result.UnpaidCount++
		if ierr.IsPaymentFailed(err) {
			s.Logger.Debugw("invoice payment declined", "invoice_id", inv.ID)
		} else {
			s.Logger.Warnw("invoice payment failed", "invoice_id", inv.ID, "error", err)
		}
		return
	}
	result.PaidCount++
	result.PaidInvoiceIDs = append(result.PaidInvoiceIDs, inv.ID)
}

func (s *invoiceReconciler) ReconcileUntilSettled(ctx context.Context, entityID string, passes int) (*ReconcileResult, error) {
	total := &ReconcileResult{}
	for pass := 0; pass < passes; pass++ {
		r, err := s.Reconcile(ctx, entityID)
		if err != nil {
			return total, err
		}

		total.PaidCount += r.PaidCount
		total.Finalized += r.Finalized
		total.FinalizeFailed += r.FinalizeFailed
		total.PaidInvoiceIDs = append(total.PaidInvoiceIDs, r.PaidInvoiceIDs...)
		// still-unpaid invoices are retried every pass, so only the last one counts
		total.UnpaidCount = r.UnpaidCount
		total.Skipped = r.Skipped

		if r.PaidCount == 0 && r.Finalized == 0 {
			break
		}
	}
	return total, nil
}
