package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tlacroix/receiptledger/internal/common"
	"github.com/tlacroix/receiptledger/internal/export"
	"github.com/tlacroix/receiptledger/internal/money"
	"github.com/tlacroix/receiptledger/internal/pipeline"
)

const maxUploadBytes = 20 << 20

// handleAnalyze accepts a multipart receipt upload, runs the analysis
// pipeline and returns the extraction plus the advisory suggestion along
// with an upload id for the later submission.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, common.NewValidationError("body", "not a valid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, common.NewValidationError("file", "missing file part"))
		return
	}
	defer file.Close()

	page := 1
	if p := r.FormValue("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n >= 1 {
			page = n
		} else {
			writeError(w, common.NewValidationError("page", "must be a positive integer"))
			return
		}
	}

	tmp, err := os.CreateTemp("", "rl-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}
	tmp.Close()

	analysis, err := s.processor.Analyze(r.Context(), tmp.Name(), page)
	if err != nil {
		os.Remove(tmp.Name())
		writeError(w, err)
		return
	}

	uploadID := s.uploads.Put(tmp.Name(), header.Filename)
	writeJSON(w, http.StatusOK, struct {
		UploadID string `json:"upload_id"`
		pipeline.Analysis
	}{UploadID: uploadID, Analysis: analysis})
}

// submissionRequest is the JSON body of preview and submit calls.
// Amounts may be numbers or locale-formatted strings; both normalize
// through money.Parse.
type submissionRequest struct {
	UploadID        string `json:"upload_id"`
	Journal         string `json:"journal"`
	DocumentDate    string `json:"document_date"`
	TicketNumber    string `json:"ticket_number"`
	PayeeLabel      string `json:"payee_label"`
	Category        string `json:"category"`
	VatRate         string `json:"vat_rate"`
	SupplierAccount string `json:"supplier_account"`
	TotalTTC        any    `json:"total_ttc"`
	TotalHT         any    `json:"total_ht"`
	TotalTVA        any    `json:"total_tva"`
}

func (req submissionRequest) toSubmission(filePath string) pipeline.Submission {
	return pipeline.Submission{
		FilePath:        filePath,
		Journal:         req.Journal,
		DocumentDate:    req.DocumentDate,
		TicketNumber:    req.TicketNumber,
		PayeeLabel:      req.PayeeLabel,
		Category:        req.Category,
		VatRate:         req.VatRate,
		SupplierAccount: req.SupplierAccount,
		TotalTTC:        money.Parse(req.TotalTTC),
		TotalHT:         money.Parse(req.TotalHT),
		TaxAmount:       money.Parse(req.TotalTVA),
	}
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.NewValidationError("body", "not valid JSON"))
		return
	}
	u, ok := s.uploads.Get(req.UploadID)
	if !ok {
		writeError(w, common.NewValidationError("upload_id", "unknown or expired upload"))
		return
	}

	result, err := s.processor.Submit(r.Context(), req.toSubmission(u.path))
	if err != nil {
		if result.DocumentID != "" {
			// Partial completion: the GED upload went through before the
			// post failed. Surface both to the caller.
			writeJSON(w, http.StatusBadGateway, struct {
				ErrorResponse
				pipeline.SubmitResult
			}{
				ErrorResponse: ErrorResponse{Error: "post_failed", Detail: err.Error()},
				SubmitResult:  result,
			})
			return
		}
		writeError(w, err)
		return
	}

	s.uploads.Remove(req.UploadID)
	writeJSON(w, http.StatusOK, result)
}

// handlePreview builds the entry without touching any external system
// and returns it as an XLSX workbook.
func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.NewValidationError("body", "not valid JSON"))
		return
	}

	entry, err := s.processor.BuildEntry(req.toSubmission(""))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := export.EntryXLSX(entry)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="entry-preview-`+time.Now().Format("20060102-150405")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleConfigUpdate replaces the ledger configuration. The store fires
// its hooks before returning, so the cached session token is already
// invalid when the caller gets a response.
func (s *Service) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BaseURL     string `json:"base_url"`
		Identifier  string `json:"identifier"`
		Secret      string `json:"secret"`
		DossierCode string `json:"dossier_code"`
		FolderID    int    `json:"folder_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, common.NewValidationError("body", "not valid JSON"))
		return
	}

	current, _ := s.store.Ledger()
	current.BaseURL = req.BaseURL
	current.Identifier = req.Identifier
	current.Secret = req.Secret
	current.DossierCode = req.DossierCode
	current.FolderID = req.FolderID
	s.store.Update(current)

	s.log.Info("server.config.updated", "dossier", req.DossierCode)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
