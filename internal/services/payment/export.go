package payment

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/magabrotheeeer/vpn-panel/internal/lib/apperr"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-panel/internal/models"
)

var exportHeader = []interface{}{
	"payment_id",
	"user_id",
	"user_email",
	"amount",
	"status",
	"admin_approved",
	"plan",
	"subscription_status",
	"created_at",
}

// ExportPayments выгружает все платежи в XLSX.
func (s *PaymentService) ExportPayments(ctx context.Context, adminID string) ([]byte, error) {
	payments, err := s.ListAllPayments(ctx, adminID)
	if err != nil {
		return nil, err
	}

	data, err := writePaymentsXLSX(payments)
	if err != nil {
		s.log.Error("failed to build payments export", sl.Err(err))
		return nil, apperr.Wrap("Failed to export payments", err)
	}
	return data, nil
}

func writePaymentsXLSX(payments []*models.PaymentWithSubscription) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, p := range payments {
		var email, plan, subStatus string
		if p.UserEmail != nil {
			email = *p.UserEmail
		}
		if p.Subscription != nil {
			plan = p.Subscription.PlanName
			subStatus = string(p.Subscription.Status)
		}
		amount, _ := p.Amount.Float64()
		row := []interface{}{
			p.ID,
			p.UserID,
			email,
			amount,
			string(p.Status),
			p.AdminApproved,
			plan,
			subStatus,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return buf.Bytes(), nil
}
