package worker

// jobs.go holds the job handlers: the customer receipt and the staff alert.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pharmapos/internal/dto"
	"pharmapos/internal/infra"
	"pharmapos/internal/service"

	"github.com/rs/zerolog/log"
)

// SaleLoader is the slice of service.SaleService the receipt job needs.
type SaleLoader interface {
	GetSale(ctx context.Context, id uint) (*dto.SaleResponse, error)
}

// ReceiptWorker mails the PDF receipt of a sale to the customer.
type ReceiptWorker struct {
	sales     SaleLoader
	mailer    infra.MailSender
	storeName string
}

func NewReceiptWorker(sales SaleLoader, mailer infra.MailSender, storeName string) *ReceiptWorker {
	return &ReceiptWorker{sales: sales, mailer: mailer, storeName: storeName}
}

// Process is a HandlerFunc for JobReceipt.
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("receipt: invalid payload: %w", err))
	}
	if payload.Email == "" {
		log.Warn().Uint("sale_id", payload.SaleID).Msg("receipt: empty email, skipping")
		return nil
	}

	sale, err := w.sales.GetSale(ctx, payload.SaleID)
	if err != nil {
		if service.Kind(err) == service.KindNotFound {
			return Permanent(err)
		}
		return err
	}

	pdf, err := infra.RenderSaleReceipt(w.storeName, sale)
	if err != nil {
		return Permanent(err)
	}

	err = w.mailer.Send(ctx, infra.Message{
		To:      []string{payload.Email},
		Subject: fmt.Sprintf("%s receipt #%d", w.storeName, sale.ID),
		Text: fmt.Sprintf("Hello %s,\n\nThank you for your purchase. Total paid: $%s.\nYour receipt is attached.\n",
			sale.CustomerName, sale.FinalAmount),
		Attachments: []infra.Attachment{{
			Filename:    fmt.Sprintf("receipt_%d.pdf", sale.ID),
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	})
	if errors.Is(err, infra.ErrMailerDisabled) {
		log.Warn().Uint("sale_id", sale.ID).Msg("receipt: SMTP not configured, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Uint("sale_id", sale.ID).Str("to", payload.Email).Msg("receipt: sent")
	return nil
}

// AlertWorker delivers AlertPayload emails.
type AlertWorker struct {
	mailer infra.MailSender
}

func NewAlertWorker(mailer infra.MailSender) *AlertWorker {
	return &AlertWorker{mailer: mailer}
}

// Process is a HandlerFunc for JobExpiryAlert.
func (w *AlertWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload AlertPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("alert: invalid payload: %w", err))
	}
	err := w.mailer.Send(ctx, infra.Message{
		To:      []string{payload.To},
		Subject: payload.Subject,
		Text:    payload.Body,
	})
	if errors.Is(err, infra.ErrMailerDisabled) {
		log.Warn().Str("subject", payload.Subject).Msg("alert: SMTP not configured, dropping")
		return nil
	}
	return err
}
