package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/domain"
	"github.com/liliang-cn/pdfqa/internal/session"
	"github.com/liliang-cn/pdfqa/internal/settings"
)

// Event names used in InvalidStateError and logs
const (
	EventFileSelected     = "FileSelected"
	EventProcessRequested = "ProcessRequested"
	EventQuestionAsked    = "QuestionAsked"
	EventClearHistory     = "ClearHistoryRequested"
	EventConfigChanged    = "ConfigChanged"
)

// Gateway is the backend the controller calls.
type Gateway interface {
	SubmitDocument(ctx context.Context, handle *domain.DocumentHandle, endpoint string) error
	AskQuestion(ctx context.Context, question, documentName string, temperature float64, endpoint string) (string, error)
}

// Journal mirrors session changes to durable storage.
type Journal interface {
	CreateSession(id string) error
	UpdateSession(id, documentName string, status domain.ProcessingStatus) error
	CreateMessage(sessionID string, message *domain.Message) error
	ClearMessages(sessionID string) error
}

// AskResult is the outcome of a QuestionAsked event.
type AskResult struct {
	Answer *domain.Message
	// Err is the gateway failure whose description became the answer.
	Err error
}

// Controller sequences user events for one session against its state,
// its configuration and the backend. Events are handled one at a time,
// each to completion, including any backend call.
type Controller struct {
	id             string
	state          *session.State
	settings       *settings.Store
	gateway        Gateway
	journal        Journal
	maxUploadBytes int64
	logger         *zap.Logger

	events sync.Mutex
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	ID             string
	Settings       *settings.Store
	Gateway        Gateway
	Journal        Journal
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewController creates a controller with a fresh session state.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if opts.Settings == nil {
		store, err := settings.NewStore(domain.DefaultBackendConfiguration())
		if err != nil {
			return nil, err
		}
		opts.Settings = store
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		id:             opts.ID,
		state:          session.NewState(),
		settings:       opts.Settings,
		gateway:        opts.Gateway,
		journal:        opts.Journal,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger.With(zap.String("session_id", opts.ID)),
	}
	c.record("create session", func(j Journal) error { return j.CreateSession(c.id) })
	return c, nil
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Status returns the current processing status.
func (c *Controller) Status() domain.ProcessingStatus {
	return c.state.Status()
}

// Config returns the current backend configuration.
func (c *Controller) Config() domain.BackendConfiguration {
	return c.settings.Get()
}

// Snapshot returns a copy of the session for rendering.
func (c *Controller) Snapshot() *domain.Snapshot {
	st := c.state.Snapshot()
	snap := &domain.Snapshot{
		SessionID: c.id,
		Status:    st.Status,
		Messages:  st.Transcript,
		Config:    c.settings.Get(),
		LastError: st.LastError,
	}
	if doc := st.Document; doc != nil {
		snap.Document = &domain.DocumentInfo{Name: doc.Name, ByteSize: doc.ByteSize}
	}
	return snap
}

// SelectFile makes handle the current document. Allowed in every status;
// the status resets to Uploaded and the transcript is cleared.
func (c *Controller) SelectFile(handle *domain.DocumentHandle) error {
	if handle == nil {
		return fmt.Errorf("%w: document is required", domain.ErrInvalidRequest)
	}
	if c.maxUploadBytes > 0 && handle.ByteSize > c.maxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrFileTooLarge, handle.ByteSize, c.maxUploadBytes)
	}

	c.events.Lock()
	defer c.events.Unlock()

	c.state.SetDocument(handle)
	c.logger.Info("Document selected",
		zap.String("document", handle.Name),
		zap.Int64("bytes", handle.ByteSize),
	)
	c.record("update session", func(j Journal) error {
		if err := j.ClearMessages(c.id); err != nil {
			return err
		}
		return j.UpdateSession(c.id, handle.Name, domain.StatusUploaded)
	})
	return nil
}

// Process submits the current document to the backend. On success the
// status becomes Processed; any gateway error moves it to
// ProcessingFailed and is returned. The transcript is left untouched.
func (c *Controller) Process(ctx context.Context) error {
	c.events.Lock()
	defer c.events.Unlock()

	doc := c.state.Document()
	status := c.state.Status()
	if doc == nil || status == domain.StatusNotUploaded {
		return &domain.InvalidStateError{Event: EventProcessRequested, Status: status}
	}

	cfg := c.settings.Get()
	c.setStatus(doc.Name, domain.StatusProcessing)

	start := time.Now()
	err := c.gateway.SubmitDocument(context.WithoutCancel(ctx), doc, cfg.EndpointURL)
	if err != nil {
		c.state.SetLastError(ProcessFailureMessage(err))
		c.setStatus(doc.Name, domain.StatusProcessingFailed)
		c.logger.Warn("Document processing failed",
			zap.String("document", doc.Name),
			zap.String("endpoint", cfg.EndpointURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	c.state.SetLastError("")
	c.setStatus(doc.Name, domain.StatusProcessed)
	c.logger.Info("Document processed",
		zap.String("document", doc.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Ask appends the question to the transcript, asks the backend and
// appends the answer. A gateway failure does not fail the event: its
// description is recorded as the assistant message and returned in
// AskResult.Err. Errors are returned only for rejected events, which leave
// the transcript untouched.
func (c *Controller) Ask(ctx context.Context, question string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	c.events.Lock()
	defer c.events.Unlock()

	status := c.state.Status()
	doc := c.state.Document()
	if status != domain.StatusProcessed || doc == nil {
		return nil, &domain.InvalidStateError{Event: EventQuestionAsked, Status: status}
	}

	cfg := c.settings.Get()
	c.appendMessage(domain.RoleUser, question)

	answer, err := c.gateway.AskQuestion(context.WithoutCancel(ctx), question, doc.Name, cfg.RequestTemperature, cfg.EndpointURL)
	if err != nil {
		c.logger.Warn("Question failed",
			zap.String("document", doc.Name),
			zap.String("endpoint", cfg.EndpointURL),
			zap.Error(err),
		)
		answer = AnswerFailureMessage(err)
	}

	msg := c.appendMessage(domain.RoleAssistant, answer)
	return &AskResult{Answer: msg, Err: err}, nil
}

// ClearHistory empties the transcript. Status and document are kept.
func (c *Controller) ClearHistory() {
	c.events.Lock()
	defer c.events.Unlock()

	c.state.ClearTranscript()
	c.logger.Info("Chat history cleared")
	c.record("clear messages", func(j Journal) error { return j.ClearMessages(c.id) })
}

// UpdateConfig applies update to the session configuration. It takes
// effect on the next backend call.
func (c *Controller) UpdateConfig(update domain.ConfigUpdate) (domain.BackendConfiguration, error) {
	c.events.Lock()
	defer c.events.Unlock()

	cfg, err := c.settings.Set(update)
	if err != nil {
		c.logger.Info("Configuration rejected", zap.Error(err))
		return cfg, err
	}
	c.logger.Info("Configuration updated",
		zap.String("endpoint", cfg.EndpointURL),
		zap.Float64("temperature", cfg.RequestTemperature),
	)
	return cfg, nil
}

func (c *Controller) appendMessage(role domain.Role, content string) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	c.state.AppendMessage(msg)
	c.record("create message", func(j Journal) error { return j.CreateMessage(c.id, msg) })
	return msg
}

func (c *Controller) setStatus(documentName string, status domain.ProcessingStatus) {
	c.state.SetStatus(status)
	c.record("update session", func(j Journal) error { return j.UpdateSession(c.id, documentName, status) })
}

// record mirrors a change into the journal. Journal failures are logged
// and never fail the event.
func (c *Controller) record(action string, fn func(Journal) error) {
	if c.journal == nil {
		return
	}
	if err := fn(c.journal); err != nil {
		c.logger.Error("Journal write failed", zap.String("action", action), zap.Error(err))
	}
}

// ProcessFailureMessage renders a processing failure for the user.
func ProcessFailureMessage(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind == domain.GatewayBackendRejected {
		return fmt.Sprintf("Backend returned status %d: %s", gwErr.StatusCode, gwErr.Body)
	}
	return fmt.Sprintf("Error when calling backend: %s", failureDetail(err))
}

// AnswerFailureMessage renders a question failure as assistant content.
func AnswerFailureMessage(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind == domain.GatewayBackendRejected {
		return fmt.Sprintf("Error from backend: %d - %s", gwErr.StatusCode, gwErr.Body)
	}
	return fmt.Sprintf("Error when calling backend: %s", failureDetail(err))
}

func failureDetail(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Detail
	}
	return err.Error()
}
