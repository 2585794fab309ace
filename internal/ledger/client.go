package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tlacroix/receiptledger/internal/common"
)

// Header carrying the session token on every scoped call.
const tokenHeader = "X-Session-Token"

// Client issues raw calls against the ledger API. Configuration is read
// through the store on every call so admin updates apply immediately.
type Client struct {
	store *common.Store
	http  *http.Client
	log   *slog.Logger
}

func NewClient(store *common.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		store: store,
		// Per-call deadlines come from the configured timeout.
		http: &http.Client{},
		log:  logger,
	}
}

// Authenticate exchanges the configured credentials for a session token.
// The token is extracted from one of the historically observed response
// shapes; a body without any of them counts as rejected credentials.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	cfg, _ := c.store.Ledger()
	if err := cfg.Require(); err != nil {
		return "", err
	}

	body, status, err := c.postJSON(ctx, cfg, "/api/authenticate", "", map[string]string{
		"identifier": cfg.Identifier,
		"secret":     cfg.Secret,
	})
	if err != nil {
		return "", err
	}
	if status/100 != 2 {
		c.log.Warn("ledger.authenticate.rejected", "status", status)
		return "", common.NewSessionError("authenticate", "credentials rejected")
	}

	token, ok := lookupField(body, "token", "Token", "accessToken", "access_token", "data.token", "data.Token")
	if !ok {
		c.log.Warn("ledger.authenticate.no_token_field", "body_bytes", len(body))
		return "", common.NewSessionError("authenticate", "credentials rejected: no token in response")
	}
	return token, nil
}

// OpenDossier opens the tenant/book scope for subsequent operations. The
// body is the dossier code as a bare JSON string, per the ledger API.
func (c *Client) OpenDossier(ctx context.Context, token string) error {
	cfg, _ := c.store.Ledger()
	if err := cfg.Require(); err != nil {
		return err
	}

	_, status, err := c.postJSON(ctx, cfg, "/api/dossier/open", token, cfg.DossierCode)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		c.log.Warn("ledger.dossier.rejected", "status", status, "dossier", cfg.DossierCode)
		return common.NewSessionError("open dossier", fmt.Sprintf("dossier %s rejected with status %d", cfg.DossierCode, status))
	}
	return nil
}

// UploadDocument sends the source file to the GED in a single multipart
// request: one numeric field naming the target folder, one file part.
// Success is signaled only by an id field in the body — a 200 without an
// id is still a failure.
func (c *Client) UploadDocument(ctx context.Context, token, filename string, data []byte) (string, error) {
	cfg, _ := c.store.Ledger()
	if err := cfg.Require(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("idCategorie", strconv.Itoa(cfg.FolderID)); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	part, err := w.CreateFormFile("fichier", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	ctx, cancel := c.deadline(ctx, cfg)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+"/api/documents", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(tokenHeader, token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.NewTransportError("upload document", 0, nil, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	c.log.Info("ledger.upload.response",
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return "", common.NewTransportError("upload document", resp.StatusCode, body, nil)
	}

	id, ok := lookupField(body, "id", "Id", "ID", "documentId", "document_id", "data.id", "data.Id")
	if !ok {
		return "", common.NewUpstreamParseError("no document id in upload response", string(body))
	}
	return id, nil
}

// PostEntry transmits a built entry to the journal.
func (c *Client) PostEntry(ctx context.Context, token string, entry *Entry) error {
	cfg, _ := c.store.Ledger()
	if err := cfg.Require(); err != nil {
		return err
	}

	body, status, err := c.postJSON(ctx, cfg, "/api/entries", token, entry)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return common.NewTransportError("post entry", status, body, nil)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, cfg common.LedgerConfig, path, token string, payload any) ([]byte, int, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	ctx, cancel := c.deadline(ctx, cfg)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(cfg.BaseURL, "/")+path, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, common.NewTransportError("ledger call "+path, 0, nil, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	c.log.Info("ledger.http.response",
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return body, resp.StatusCode, nil
}

func (c *Client) deadline(ctx context.Context, cfg common.LedgerConfig) (context.Context, context.CancelFunc) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
