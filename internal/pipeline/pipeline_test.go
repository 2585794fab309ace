package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tlacroix/receiptledger/internal/accounts"
	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/extract"
	"github.com/tlacroix/receiptledger/internal/ledger"
	"github.com/tlacroix/receiptledger/internal/rasterize"
)

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

// fakeExtractor returns canned extraction results without a network call.
type fakeExtractor struct {
	result extract.Result
	err    error
	calls  atomic.Int64
}

func (f *fakeExtractor) ExtractFields(ctx context.Context, image []byte, mimeType string) (extract.Result, []byte, error) {
	f.calls.Add(1)
	return f.result, nil, f.err
}

func writeTempReceipt(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.png")
	if err := os.WriteFile(path, []byte("PNGDATA"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ledgerEnv is a minimal in-memory ledger API with per-endpoint call
// counters.
type ledgerEnv struct {
	auths   atomic.Int64
	opens   atomic.Int64
	uploads atomic.Int64
	posts   atomic.Int64
	failOn  string // endpoint path that answers 500
}

func (l *ledgerEnv) total() int64 {
	return l.auths.Load() + l.opens.Load() + l.uploads.Load() + l.posts.Load()
}

func (l *ledgerEnv) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == l.failOn {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/api/authenticate":
			l.auths.Add(1)
			w.Write([]byte(`{"token":"tok-1"}`))
		case "/api/dossier/open":
			l.opens.Add(1)
			w.Write([]byte(`{}`))
		case "/api/documents":
			l.uploads.Add(1)
			w.Write([]byte(`{"id":"GED-42"}`))
		case "/api/entries":
			l.posts.Add(1)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newProcessor(t *testing.T, env *ledgerEnv, fx extract.FieldExtractor) *Processor {
	t.Helper()
	srv := httptest.NewServer(env.handler())
	t.Cleanup(srv.Close)

	store := common.NewStore(common.LedgerConfig{
		BaseURL:     srv.URL,
		Identifier:  "user@example.com",
		Secret:      "s3cret",
		DossierCode: "DOS42",
		FolderID:    7,
	})
	resolver, err := accounts.NewResolver()
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	client := ledger.NewClient(store, nil)
	session := ledger.NewSessionManager(client, store, nil)
	raster := rasterize.New(common.RasterConfig{}, nil)
	return NewProcessor(raster, fx, resolver, client, session, nil)
}

func baseSubmission(path string) Submission {
	return Submission{
		FilePath:     path,
		DocumentDate: "2024-05-12",
		TicketNumber: "T-4521",
		PayeeLabel:   "BRICO DEPOT",
		Category:     "petites_fournitures",
		VatRate:      "20",
		TotalTTC:     dec("120.00"),
		TotalHT:      dec("100.00"),
		TaxAmount:    dec("20.00"),
	}
}

func TestAnalyze(t *testing.T) {
	fx := &fakeExtractor{result: extract.Result{
		Date:         "2024-05-12",
		MerchantName: "Restaurant Le Gourmet",
		TotalTTC:     dec("110.00"),
		TotalHT:      dec("100.00"),
		TotalTVA:     dec("10.00"),
	}}
	p := newProcessor(t, &ledgerEnv{}, fx)

	a, err := p.Analyze(context.Background(), writeTempReceipt(t), 1)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if fx.calls.Load() != 1 {
		t.Errorf("extractor calls = %d, want 1", fx.calls.Load())
	}
	if a.Suggestion.Category != accounts.RepasPro {
		t.Errorf("category = %q, want repas_pro", a.Suggestion.Category)
	}
	if a.Suggestion.VatRate != "10" {
		t.Errorf("vat rate = %q, want 10", a.Suggestion.VatRate)
	}
}

func TestAnalyzeExtractorFailure(t *testing.T) {
	fx := &fakeExtractor{err: common.NewUpstreamParseError("no json", "garbage")}
	p := newProcessor(t, &ledgerEnv{}, fx)

	if _, err := p.Analyze(context.Background(), writeTempReceipt(t), 1); !errors.Is(err, common.ErrUpstreamParse) {
		t.Errorf("error = %v, want upstream parse error", err)
	}
}

func TestBuildEntryResolvesAccounts(t *testing.T) {
	p := newProcessor(t, &ledgerEnv{}, &fakeExtractor{})

	entry, err := p.BuildEntry(baseSubmission("unused"))
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}
	if entry.Journal != DefaultJournal {
		t.Errorf("journal = %q, want %q", entry.Journal, DefaultJournal)
	}
	if len(entry.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(entry.Lines))
	}
	if entry.Lines[0].Account != accounts.DefaultSupplierAccount {
		t.Errorf("supplier account = %q", entry.Lines[0].Account)
	}
	if entry.Lines[1].Account != "60630020" || entry.Lines[1].TaxCode != "TVA20" {
		t.Errorf("charges line = %+v", entry.Lines[1])
	}
	if entry.Lines[2].Account != "44566200" {
		t.Errorf("tax account = %q", entry.Lines[2].Account)
	}
}

func TestSubmitPostsBalancedEntryWithReference(t *testing.T) {
	env := &ledgerEnv{}
	p := newProcessor(t, env, &fakeExtractor{})

	res, err := p.Submit(context.Background(), baseSubmission(writeTempReceipt(t)))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Posted {
		t.Error("result not marked posted")
	}
	if res.DocumentID != "GED-42" {
		t.Errorf("document id = %q", res.DocumentID)
	}
	if res.Entry == nil || res.Entry.Reference != "GED-42" {
		t.Errorf("posted entry missing document reference: %+v", res.Entry)
	}
	if !res.Entry.TotalCredit().Equal(res.Entry.TotalDebit()) {
		t.Errorf("posted entry unbalanced: credit %s debit %s", res.Entry.TotalCredit(), res.Entry.TotalDebit())
	}
	if env.uploads.Load() != 1 || env.posts.Load() != 1 {
		t.Errorf("uploads = %d posts = %d, want 1 each", env.uploads.Load(), env.posts.Load())
	}
}

func TestSubmitInvalidRateMakesNoNetworkCall(t *testing.T) {
	env := &ledgerEnv{}
	p := newProcessor(t, env, &fakeExtractor{})

	sub := baseSubmission(writeTempReceipt(t))
	sub.VatRate = "7"
	if _, err := p.Submit(context.Background(), sub); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if env.total() != 0 {
		t.Errorf("invalid submission reached the network: %d calls", env.total())
	}
}

func TestSubmitUnmappedPairMakesNoNetworkCall(t *testing.T) {
	env := &ledgerEnv{}
	p := newProcessor(t, env, &fakeExtractor{})

	sub := baseSubmission(writeTempReceipt(t))
	sub.Category = "carburant"
	sub.VatRate = "10"
	sub.TotalTTC = dec("110.00")
	sub.TaxAmount = dec("10.00")
	if _, err := p.Submit(context.Background(), sub); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if env.total() != 0 {
		t.Errorf("rejected submission reached the network: %d calls", env.total())
	}
}

func TestSubmitPostFailureSurfacesDocumentID(t *testing.T) {
	env := &ledgerEnv{failOn: "/api/entries"}
	p := newProcessor(t, env, &fakeExtractor{})

	res, err := p.Submit(context.Background(), baseSubmission(writeTempReceipt(t)))
	if err == nil {
		t.Fatal("expected post failure")
	}
	if !errors.Is(err, common.ErrUpstreamTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
	// The document made it into the GED; the caller must learn its id.
	if res.DocumentID != "GED-42" {
		t.Errorf("document id = %q, want GED-42", res.DocumentID)
	}
	if res.Posted {
		t.Error("result wrongly marked posted")
	}
}

func TestSubmitSessionFailureStopsBeforeUpload(t *testing.T) {
	env := &ledgerEnv{failOn: "/api/authenticate"}
	p := newProcessor(t, env, &fakeExtractor{})

	if _, err := p.Submit(context.Background(), baseSubmission(writeTempReceipt(t))); !errors.Is(err, common.ErrSession) {
		t.Fatalf("error = %v, want session error", err)
	}
	if env.uploads.Load() != 0 || env.posts.Load() != 0 {
		t.Errorf("uploads = %d posts = %d after session failure, want 0", env.uploads.Load(), env.posts.Load())
	}
}
