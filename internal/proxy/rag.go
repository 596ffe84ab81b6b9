package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/prisma-glow/edge-gateway/internal/httpx"
)

const (
	// maxTopK caps search result counts.
	maxTopK = 50
	// maxMultipartMemory bounds in-memory multipart parsing.
	maxMultipartMemory = 32 << 20
	// maxErrorBody bounds how much of an upstream error body is logged.
	maxErrorBody = 2048
)

// allowedIngestTypes is the media-type allow-list for uploaded documents.
var allowedIngestTypes = map[string]bool{
	"application/pdf": true,
}

// RagProxy relays buffered ingest and search requests to the retrieval
// service, validating payload shape before forwarding and normalizing
// upstream failures to a 502 envelope. Single attempt, no retries.
type RagProxy struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewRagProxy(baseURL, apiKey string, logger *slog.Logger) *RagProxy {
	return &RagProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Ingest handles POST /v1/rag/ingest: multipart with a required document
// file, a required orgSlug field and an optional documentId.
func (p *RagProxy) Ingest(r *http.Request) (*httpx.Response, error) {
	if p.baseURL == "" {
		return httpx.Error(http.StatusServiceUnavailable, "upstream_unavailable"), nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return httpx.Error(http.StatusBadRequest, "file_required"), nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return httpx.Error(http.StatusBadRequest, "file_required"), nil
	}
	defer file.Close()

	mediaType := header.Header.Get("Content-Type")
	if !allowedIngestTypes[mediaType] {
		return httpx.Error(http.StatusBadRequest, "unsupported_media_type"), nil
	}
	orgSlug := strings.TrimSpace(r.FormValue("orgSlug"))
	if orgSlug == "" {
		return httpx.Error(http.StatusBadRequest, "orgSlug_required"), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, header.Filename))
	partHeader.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.WriteField("orgSlug", orgSlug); err != nil {
		return nil, err
	}
	if documentID := strings.TrimSpace(r.FormValue("documentId")); documentID != "" {
		if err := mw.WriteField("documentId", documentID); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return p.forward(r, "/ingest", &body, mw.FormDataContentType())
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"topK,omitempty"`
}

// Search handles POST /v1/rag/search: JSON with a required query and an
// optional topK clamped to 1..50.
func (p *RagProxy) Search(r *http.Request) (*httpx.Response, error) {
	if p.baseURL == "" {
		return httpx.Error(http.StatusServiceUnavailable, "upstream_unavailable"), nil
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return httpx.Error(http.StatusBadRequest, "invalid_json"), nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return httpx.Error(http.StatusBadRequest, "query_required"), nil
	}
	if req.TopK != nil {
		k := *req.TopK
		if k < 1 {
			k = 1
		}
		if k > maxTopK {
			k = maxTopK
		}
		req.TopK = &k
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return p.forward(r, "/search", bytes.NewReader(payload), "application/json")
}

// forward issues the outbound call and normalizes the outcome: upstream JSON
// relayed with its status on success, a 502 envelope on any failure.
func (p *RagProxy) forward(r *http.Request, path string, body io.Reader, contentType string) (*httpx.Response, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	setForwardHeaders(req, httpx.GetRequestContext(r.Context()), p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("rag upstream call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return httpx.Error(http.StatusBadGateway, "upstream_error"), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		p.logger.Error("rag upstream returned error",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return httpx.Error(http.StatusBadGateway, "upstream_error"), nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("rag upstream body read failed", slog.String("error", err.Error()))
		return httpx.Error(http.StatusBadGateway, "upstream_error"), nil
	}
	return &httpx.Response{Status: resp.StatusCode, ContentType: "application/json", Body: payload}, nil
}
