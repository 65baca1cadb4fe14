// Package gateway performs the two outbound calls to the document
// processing backend: submitting a PDF and asking a question about it.
//
// The client is stateless between calls. Every call gets its own timeout
// and is never retried.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/domain"
)

// Backend paths
const (
	ProcessPath  = "/process_pdf"
	QuestionPath = "/ask_question"
)

// Operation names used in errors and logs
const (
	OpSubmitDocument = "submit_document"
	OpAskQuestion    = "ask_question"
)

// Default call budgets
const (
	DefaultProcessTimeout = 120 * time.Second
	DefaultAskTimeout     = 60 * time.Second
)

// Options configures a Client.
type Options struct {
	ProcessTimeout time.Duration
	AskTimeout     time.Duration
	HTTPClient     *http.Client
}

// Client calls the backend over HTTP.
type Client struct {
	httpClient     *http.Client
	processTimeout time.Duration
	askTimeout     time.Duration
	logger         *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultProcessTimeout
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = DefaultAskTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:     opts.HTTPClient,
		processTimeout: opts.ProcessTimeout,
		askTimeout:     opts.AskTimeout,
		logger:         logger,
	}
}

// QuestionPayload is the JSON body sent to the question endpoint.
type QuestionPayload struct {
	Question    string  `json:"question"`
	PDFName     string  `json:"pdf_name"`
	Temperature float64 `json:"temperature"`
}

type answerPayload struct {
	Answer *string `json:"answer"`
}

// SubmitDocument uploads the document as multipart field "file" to
// {endpoint}/process_pdf. Any 2xx response is success.
func (c *Client) SubmitDocument(ctx context.Context, handle *domain.DocumentHandle, endpoint string) error {
	body, contentType, err := encodeDocument(handle)
	if err != nil {
		return domain.NewUnreachableError(OpSubmitDocument, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.processTimeout)
	defer cancel()

	_, err = c.post(ctx, OpSubmitDocument, joinURL(endpoint, ProcessPath), contentType, body)
	return err
}

// AskQuestion posts the question to {endpoint}/ask_question and returns the
// answer. A 2xx response without an answer field yields
// domain.NoAnswerPlaceholder.
func (c *Client) AskQuestion(ctx context.Context, question, documentName string, temperature float64, endpoint string) (string, error) {
	payload, err := json.Marshal(QuestionPayload{
		Question:    question,
		PDFName:     documentName,
		Temperature: temperature,
	})
	if err != nil {
		return "", domain.NewUnreachableError(OpAskQuestion, fmt.Errorf("marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.askTimeout)
	defer cancel()

	respBody, err := c.post(ctx, OpAskQuestion, joinURL(endpoint, QuestionPath), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var res answerPayload
	if err := json.Unmarshal(respBody, &res); err != nil {
		return "", domain.NewUnreachableError(OpAskQuestion, fmt.Errorf("decode answer: %w", err))
	}
	if res.Answer == nil {
		return domain.NoAnswerPlaceholder, nil
	}
	return *res.Answer, nil
}

// post sends the request and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, op, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, domain.NewUnreachableError(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend unreachable",
			zap.String("op", op),
			zap.String("url", url),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, domain.NewUnreachableError(op, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, domain.NewUnreachableError(op, fmt.Errorf("read response: %w", err))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Warn("Backend rejected request",
			zap.String("op", op),
			zap.String("url", url),
			zap.Int("status", res.StatusCode),
		)
		return nil, domain.NewRejectedError(op, res.StatusCode, string(resBody))
	}

	c.logger.Debug("Backend call succeeded",
		zap.String("op", op),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resBody, nil
}

func encodeDocument(handle *domain.DocumentHandle) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, handle.Name))
	header.Set("Content-Type", domain.PDFContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(handle.RawBytes); err != nil {
		return nil, "", fmt.Errorf("write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func joinURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}
