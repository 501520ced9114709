package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"crm-service/internal/model"

	"gorm.io/gorm"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// InvoiceTotals holds the computed amounts of an invoice
type InvoiceTotals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

// ComputeInvoiceTotals fills each item's amount and returns the totals.
// Quantities and prices must be non-negative.
func ComputeInvoiceTotals(items []model.InvoiceItem, taxRate float64) (InvoiceTotals, error) {
	if taxRate < 0 {
		return InvoiceTotals{}, Invalid("taxRate", "must not be negative")
	}

	var t InvoiceTotals
	for i := range items {
		if items[i].Description == "" {
			return InvoiceTotals{}, Invalid("items", fmt.Sprintf("item %d needs a description", i+1))
		}
		if items[i].Quantity < 0 || items[i].UnitPrice < 0 {
			return InvoiceTotals{}, Invalid("items", fmt.Sprintf("item %d has a negative quantity or price", i+1))
		}
		items[i].Amount = round2(items[i].Quantity * items[i].UnitPrice)
		t.Subtotal += items[i].Amount
	}
	t.Subtotal = round2(t.Subtotal)
	t.TaxAmount = round2(t.Subtotal * taxRate / 100)
	t.Total = round2(t.Subtotal + t.TaxAmount)
	return t, nil
}

// ApplyTotals recomputes inv's amounts from its items
func ApplyTotals(inv *model.Invoice) error {
	t, err := ComputeInvoiceTotals(inv.Items, inv.TaxRate)
	if err != nil {
		return err
	}
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.Total = t.Total
	return nil
}

// NextInvoiceNumber returns the next INV-YYYYMM-NNNN number for the month of
// now, counting soft-deleted invoices so numbers are never reused.
func NextInvoiceNumber(ctx context.Context, db *gorm.DB, now time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", now.Format("200601"))

	var last model.Invoice
	err := db.WithContext(ctx).Unscoped().
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last.InvoiceNumber != "" {
		var n int
		if _, err := fmt.Sscanf(last.InvoiceNumber[len(prefix):], "%d", &n); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// CreateInvoice numbers, totals and stores inv
func CreateInvoice(ctx context.Context, db *gorm.DB, inv *model.Invoice, now time.Time) error {
	if inv.ClientID == "" {
		return Invalid("clientId", "is required")
	}
	if err := ApplyTotals(inv); err != nil {
		return err
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	if inv.Status == "" {
		inv.Status = model.InvoiceStatusDraft
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &model.Client{}, inv.ClientID, "clientId"); err != nil {
			return err
		}
		if inv.InvoiceNumber == "" {
			num, err := NextInvoiceNumber(ctx, tx, now)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = num
		}
		return tx.Create(inv).Error
	})
}

// RecordPayment stores p and adds its amount to the project's amountPaid.
// A linked invoice becomes paid once its payments cover the total.
func RecordPayment(ctx context.Context, db *gorm.DB, p *model.Payment, now time.Time) error {
	if p.Amount <= 0 {
		return Invalid("amount", "must be greater than zero")
	}
	if p.ProjectID == "" {
		return Invalid("projectId", "is required")
	}
	if p.Method == "" {
		p.Method = model.PaymentMethodBankTransfer
	}
	if !model.IsValidPaymentMethod(p.Method) {
		return Invalid("method", "unknown payment method")
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project model.Project
		if err := tx.First(&project, "id = ?", p.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Invalid("projectId", "project not found")
			}
			return err
		}
		if p.ClientID == "" {
			p.ClientID = project.ClientID
		}
		if p.ClientID != project.ClientID {
			return Invalid("clientId", "does not own the project")
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := adjustAmountPaid(tx, project.ID, p.Amount); err != nil {
			return err
		}
		if p.InvoiceID != "" {
			return settleInvoice(tx, p.InvoiceID, now)
		}
		return nil
	})
}

// DeletePayment removes a payment and reverses its effect on the project
// and invoice.
func DeletePayment(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Payment
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		if err := adjustAmountPaid(tx, p.ProjectID, -p.Amount); err != nil {
			return err
		}
		if p.InvoiceID != "" {
			return settleInvoice(tx, p.InvoiceID, now)
		}
		return nil
	})
}

func adjustAmountPaid(tx *gorm.DB, projectID string, delta float64) error {
	return tx.Model(&model.Project{}).
		Where("id = ?", projectID).
		Update("amount_paid", gorm.Expr("amount_paid + ?", delta)).Error
}

// settleInvoice marks the invoice paid when covered and reopens it to sent
// when a reversal leaves it short.
func settleInvoice(tx *gorm.DB, invoiceID string, now time.Time) error {
	var inv model.Invoice
	if err := tx.First(&inv, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Invalid("invoiceId", "invoice not found")
		}
		return err
	}

	var paid float64
	if err := tx.Model(&model.Payment{}).
		Where("invoice_id = ?", invoiceID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&paid).Error; err != nil {
		return err
	}

	covered := inv.Total > 0 && round2(paid) >= inv.Total
	switch {
	case covered && inv.Status != model.InvoiceStatusPaid:
		return tx.Model(&inv).Updates(map[string]interface{}{
			"status":  model.InvoiceStatusPaid,
			"paid_at": now,
		}).Error
	case !covered && inv.Status == model.InvoiceStatusPaid:
		return tx.Model(&inv).Updates(map[string]interface{}{
			"status":  model.InvoiceStatusSent,
			"paid_at": nil,
		}).Error
	}
	return nil
}

// MarkOverdue flips sent invoices past their due date to overdue and
// returns how many changed.
func MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", model.InvoiceStatusSent, StartOfDay(now)).
		Update("status", model.InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}

func ensureExists(tx *gorm.DB, m interface{}, id, field string) error {
	var n int64
	if err := tx.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return Invalid(field, "not found")
	}
	return nil
}
