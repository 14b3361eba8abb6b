package service

import (
	"context"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/invoicedesk/internal/invoice/domain"
	"github.com/smallbiznis/invoicedesk/internal/invoice/render"
	obslogger "github.com/smallbiznis/invoicedesk/internal/observability/logger"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

func (s *Service) RenderHTML(ctx context.Context, id string) (string, error) {
	input, err := s.renderInput(ctx, id)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(input)
}

func (s *Service) RenderPDF(ctx context.Context, id string) (domain.Document, error) {
	input, err := s.renderInput(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}

	content, err := s.renderer.RenderPDF(input)
	if err != nil {
		obslogger.ForInvoice(ctx, s.log, input.Invoice.ID).Error("render pdf failed", zap.Error(err))
		return domain.Document{}, err
	}

	return domain.Document{
		Filename:    documentFilename(input.Invoice.Invoice),
		ContentType: pdfContentType,
		Content:     content,
	}, nil
}

func (s *Service) renderInput(ctx context.Context, id string) (render.RenderInput, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return render.RenderInput{}, err
	}

	now := s.clock.Now()
	display := s.display.Get()
	return render.RenderInput{
		Invoice:     domain.Project(invoice, now),
		Currency:    display.Currency(invoice.Currency),
		DueSoonDays: display.DueSoonDays,
		GeneratedAt: now,
	}, nil
}

func documentFilename(inv domain.Invoice) string {
	name := slug.Make(inv.InvoiceNumber)
	if name == "" {
		name = "invoice-" + inv.ID.String()
	}
	return name + ".pdf"
}
