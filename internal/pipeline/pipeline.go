// Package pipeline orchestrates the receipt-to-ledger-entry flow:
// analyze (rasterize, extract, classify) and submit (validate, resolve,
// build, upload, post). External calls run sequentially; no step is
// retried; any failure aborts the remaining steps of that submission.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tlacroix/receiptledger/internal/accounts"
	"github.com/tlacroix/receiptledger/internal/classify"
	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/extract"
	"github.com/tlacroix/receiptledger/internal/ledger"
	"github.com/tlacroix/receiptledger/internal/rasterize"
)

// DefaultJournal is the purchases journal entries are posted to unless
// the submission says otherwise.
const DefaultJournal = "AC"

type Processor struct {
	raster    *rasterize.Rasterizer
	extractor extract.FieldExtractor
	resolver  *accounts.Resolver
	ledger    *ledger.Client
	session   *ledger.SessionManager
	log       *slog.Logger
}

func NewProcessor(
	raster *rasterize.Rasterizer,
	extractor extract.FieldExtractor,
	resolver *accounts.Resolver,
	ledgerClient *ledger.Client,
	session *ledger.SessionManager,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		raster:    raster,
		extractor: extractor,
		resolver:  resolver,
		ledger:    ledgerClient,
		session:   session,
		log:       logger,
	}
}

// Analysis is what the operator reviews before confirming a submission.
type Analysis struct {
	Extraction extract.Result      `json:"extraction"`
	Suggestion classify.Suggestion `json:"suggestion"`
}

// Analyze rasterizes one page, runs the vision extractor on it and
// derives the advisory category/VAT suggestion. The intermediate raster
// image is released before returning, including on cancellation.
func (p *Processor) Analyze(ctx context.Context, filePath string, page int) (Analysis, error) {
	rid := uuid.New().String()
	start := time.Now()
	p.log.Info("pipeline.analyze.start", "req_id", rid, "file", filepath.Base(filePath), "page", page)

	imgPath, cleanup, err := p.raster.PageToPNG(ctx, filePath, page)
	if err != nil {
		p.log.Error("pipeline.analyze.raster_failed", "req_id", rid, "error", err)
		return Analysis{}, err
	}
	defer cleanup()

	img, err := os.ReadFile(imgPath)
	if err != nil {
		return Analysis{}, err
	}

	result, _, err := p.extractor.ExtractFields(ctx, img, mimeFor(imgPath))
	if err != nil {
		p.log.Error("pipeline.analyze.extract_failed", "req_id", rid, "error", err)
		return Analysis{}, err
	}

	suggestion := classify.Suggest(result.MerchantName, result.Keywords, result.TotalHT, result.TotalTVA)

	p.log.Info("pipeline.analyze.done",
		"req_id", rid,
		"category", string(suggestion.Category),
		"vat_rate", suggestion.VatRate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Analysis{Extraction: result, Suggestion: suggestion}, nil
}

// Submission carries the operator-confirmed fields of one entry. Every
// advisory value from Analyze may have been overridden.
type Submission struct {
	FilePath        string
	Journal         string
	DocumentDate    string // YYYY-MM-DD
	TicketNumber    string
	PayeeLabel      string
	Category        string
	VatRate         string
	SupplierAccount string
	TotalTTC        *decimal.Decimal
	TotalHT         *decimal.Decimal
	TaxAmount       *decimal.Decimal
}

// SubmitResult surfaces partial completion: DocumentID is set as soon as
// the GED upload succeeded, even when the later post failed.
type SubmitResult struct {
	DocumentID string        `json:"document_id,omitempty"`
	Entry      *ledger.Entry `json:"entry,omitempty"`
	Posted     bool          `json:"posted"`
}

// BuildEntry validates the submission and assembles the balanced entry
// without touching any external system. Submit uses it as its first
// step; the preview surface uses it directly.
func (p *Processor) BuildEntry(sub Submission) (*ledger.Entry, error) {
	category, ok := accounts.CanonicalCategory(sub.Category)
	if !ok {
		return nil, common.NewValidationError("category", "unknown category "+sub.Category)
	}
	vat, err := accounts.LookupVat(sub.VatRate)
	if err != nil {
		return nil, err
	}
	chargesAccount, err := p.resolver.Resolve(category, sub.VatRate)
	if err != nil {
		return nil, err
	}

	journal := sub.Journal
	if journal == "" {
		journal = DefaultJournal
	}
	supplier := sub.SupplierAccount
	if supplier == "" {
		supplier = accounts.DefaultSupplierAccount
	}

	return ledger.Build(ledger.BuildParams{
		Journal:             journal,
		DocumentDate:        sub.DocumentDate,
		TicketNumber:        sub.TicketNumber,
		SupplierAccount:     supplier,
		PayeeLabel:          sub.PayeeLabel,
		ChargesAccount:      chargesAccount,
		TaxCode:             vat.TaxCode,
		TaxLiabilityAccount: vat.LiabilityAccount,
		TotalTTC:            sub.TotalTTC,
		TotalHT:             sub.TotalHT,
		TaxAmount:           sub.TaxAmount,
	})
}

// Submit runs the full transmission: validate and build first — so no
// external call is attempted for an invalid submission — then open the
// dossier session, upload the source document and post the entry
// referencing it.
func (p *Processor) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	rid := uuid.New().String()
	start := time.Now()
	p.log.Info("pipeline.submit.start", "req_id", rid, "category", sub.Category, "vat_rate", sub.VatRate)

	entry, err := p.BuildEntry(sub)
	if err != nil {
		p.log.Warn("pipeline.submit.rejected", "req_id", rid, "error", err)
		return SubmitResult{}, err
	}

	token, err := p.session.Open(ctx)
	if err != nil {
		p.log.Error("pipeline.submit.session_failed", "req_id", rid, "error", err)
		return SubmitResult{}, err
	}

	data, err := os.ReadFile(sub.FilePath)
	if err != nil {
		return SubmitResult{}, common.NewValidationError("file", "unreadable: "+err.Error())
	}
	docID, err := p.ledger.UploadDocument(ctx, token, filepath.Base(sub.FilePath), data)
	if err != nil {
		p.log.Error("pipeline.submit.upload_failed", "req_id", rid, "error", err)
		return SubmitResult{}, err
	}

	final := entry.WithReference(docID)
	if err := p.ledger.PostEntry(ctx, token, final); err != nil {
		p.log.Error("pipeline.submit.post_failed", "req_id", rid, "document_id", docID, "error", err)
		// The upload already happened; report it rather than pretend the
		// whole submission never ran.
		return SubmitResult{DocumentID: docID, Entry: final}, err
	}

	p.log.Info("pipeline.submit.done",
		"req_id", rid,
		"document_id", docID,
		"lines", len(final.Lines),
		"total", final.TotalCredit().StringFixed(2),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return SubmitResult{DocumentID: docID, Entry: final, Posted: true}, nil
}

func mimeFor(path string) string {
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
