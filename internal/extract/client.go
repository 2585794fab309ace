package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tlacroix/receiptledger/internal/common"
)

// Client talks to an OpenAI-style chat/completions endpoint with vision
// input. It implements FieldExtractor.
type Client struct {
	cfg  common.ExtractorConfig
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg common.ExtractorConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  logger,
	}
}

// ExtractFields sends the fixed instruction prompt plus one inlined image
// and parses whatever text comes back into a normalized Result.
func (c *Client) ExtractFields(ctx context.Context, image []byte, mimeType string) (Result, []byte, error) {
	if err := c.cfg.Require(); err != nil {
		return Result{}, nil, err
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"image_bytes", len(image),
		"mime_type", mimeType,
	)

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": BuildPrompt()},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := sendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("extract.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, nil, common.NewTransportError("extractor call", status, raw, ctxOrNil(err, status))
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return Result{}, raw, common.NewUpstreamParseError("extractor response not decodable", string(raw))
	}
	if len(cc.Choices) == 0 {
		return Result{}, raw, common.NewUpstreamParseError("no choices in extractor response", string(raw))
	}

	res, rawJSON, err := ParseResponse(cc.Choices[0].Message.Content)
	if err != nil {
		c.log.Error("extract.parse_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, rawJSON, err
	}

	c.log.Info("extract.done",
		"req_id", rid,
		"has_date", res.Date != "",
		"has_ttc", res.TotalTTC != nil,
		"has_ht", res.TotalHT != nil,
		"has_tva", res.TotalTVA != nil,
		"keywords", len(res.Keywords),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, rawJSON, nil
}

// ctxOrNil keeps network errors as causes but lets status-bearing
// failures report through status/body instead.
func ctxOrNil(err error, status int) error {
	if status == 0 {
		return err
	}
	return nil
}
