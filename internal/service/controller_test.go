package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/pdfqa/internal/domain"
)

type askCall struct {
	question    string
	document    string
	temperature float64
	endpoint    string
}

type fakeGateway struct {
	mu         sync.Mutex
	submitErr  error
	answer     string
	askErr     error
	submits    []string
	asks       []askCall
	submitHook func()
}

func (g *fakeGateway) SubmitDocument(ctx context.Context, handle *domain.DocumentHandle, endpoint string) error {
	g.mu.Lock()
	g.submits = append(g.submits, endpoint+"|"+handle.Name)
	hook := g.submitHook
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return g.submitErr
}

func (g *fakeGateway) AskQuestion(ctx context.Context, question, documentName string, temperature float64, endpoint string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asks = append(g.asks, askCall{question, documentName, temperature, endpoint})
	return g.answer, g.askErr
}

type fakeJournal struct {
	mu       sync.Mutex
	statuses []domain.ProcessingStatus
	messages map[string][]*domain.Message
	fail     bool
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{messages: make(map[string][]*domain.Message)}
}

func (j *fakeJournal) err() error {
	if j.fail {
		return errors.New("disk full")
	}
	return nil
}

func (j *fakeJournal) CreateSession(id string) error { return j.err() }

func (j *fakeJournal) UpdateSession(id, documentName string, status domain.ProcessingStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses = append(j.statuses, status)
	return j.err()
}

func (j *fakeJournal) CreateMessage(sessionID string, message *domain.Message) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.messages[sessionID] = append(j.messages[sessionID], message)
	return j.err()
}

func (j *fakeJournal) ClearMessages(sessionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.messages, sessionID)
	return j.err()
}

func newController(t *testing.T, gw *fakeGateway, journal Journal) *Controller {
	t.Helper()
	c, err := NewController(ControllerOptions{Gateway: gw, Journal: journal})
	require.NoError(t, err)
	return c
}

func handle(t *testing.T, name string) *domain.DocumentHandle {
	t.Helper()
	h, err := domain.NewDocumentHandle(name, []byte("%PDF-1.7"))
	require.NoError(t, err)
	return h
}

func processed(t *testing.T, gw *fakeGateway) *Controller {
	t.Helper()
	c := newController(t, gw, nil)
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	require.NoError(t, c.Process(context.Background()))
	require.Equal(t, domain.StatusProcessed, c.Status())
	return c
}

func TestNewControllerRequiresGateway(t *testing.T) {
	_, err := NewController(ControllerOptions{})
	assert.Error(t, err)
}

func TestSelectFileMovesToUploaded(t *testing.T) {
	c := newController(t, &fakeGateway{}, nil)
	assert.Equal(t, domain.StatusNotUploaded, c.Status())

	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))

	snap := c.Snapshot()
	assert.Equal(t, domain.StatusUploaded, snap.Status)
	require.NotNil(t, snap.Document)
	assert.Equal(t, "report.pdf", snap.Document.Name)
	assert.Equal(t, int64(8), snap.Document.ByteSize)
}

func TestSelectFileRejectsTooLarge(t *testing.T) {
	c, err := NewController(ControllerOptions{Gateway: &fakeGateway{}, MaxUploadBytes: 4})
	require.NoError(t, err)

	err = c.SelectFile(handle(t, "report.pdf"))

	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	assert.Equal(t, domain.StatusNotUploaded, c.Status())
}

func TestSelectFileResetsFromEveryStatus(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	c := processed(t, gw)
	_, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, c.Snapshot().Messages, 2)

	require.NoError(t, c.SelectFile(handle(t, "other.pdf")))

	snap := c.Snapshot()
	assert.Equal(t, domain.StatusUploaded, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Equal(t, "other.pdf", snap.Document.Name)
}

func TestProcessWithoutDocumentIsInvalidState(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, nil)

	err := c.Process(context.Background())

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	var stateErr *domain.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, EventProcessRequested, stateErr.Event)
	assert.Empty(t, gw.submits)
	assert.Equal(t, domain.StatusNotUploaded, c.Status())
}

func TestProcessSuccess(t *testing.T) {
	gw := &fakeGateway{}
	c := processed(t, gw)

	assert.Equal(t, []string{"http://localhost:8000|report.pdf"}, gw.submits)
	assert.Empty(t, c.Snapshot().LastError)
}

func TestProcessPassesThroughProcessing(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, nil)
	var during domain.ProcessingStatus
	gw.submitHook = func() { during = c.Status() }
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))

	require.NoError(t, c.Process(context.Background()))

	assert.Equal(t, domain.StatusProcessing, during)
}

func TestProcessFailureScenario(t *testing.T) {
	gw := &fakeGateway{submitErr: domain.NewRejectedError("submit_document", 500, "index error")}
	journal := newFakeJournal()
	c := newController(t, gw, journal)
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))

	err := c.Process(context.Background())

	assert.True(t, domain.IsRejected(err))
	snap := c.Snapshot()
	assert.Equal(t, domain.StatusProcessingFailed, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Equal(t, "Backend returned status 500: index error", snap.LastError)

	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	snap = c.Snapshot()
	assert.Equal(t, domain.StatusUploaded, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.LastError)

	assert.Equal(t, []domain.ProcessingStatus{
		domain.StatusUploaded,
		domain.StatusProcessing,
		domain.StatusProcessingFailed,
		domain.StatusUploaded,
	}, journal.statuses)
}

func TestProcessRetryAfterFailure(t *testing.T) {
	gw := &fakeGateway{submitErr: domain.NewUnreachableError("submit_document", errors.New("connection refused"))}
	c := newController(t, gw, nil)
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	require.Error(t, c.Process(context.Background()))
	assert.Equal(t, "Error when calling backend: connection refused", c.Snapshot().LastError)

	gw.submitErr = nil
	require.NoError(t, c.Process(context.Background()))
	assert.Equal(t, domain.StatusProcessed, c.Status())
	assert.Len(t, gw.submits, 2)
}

func TestReprocessKeepsTranscript(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	c := processed(t, gw)
	_, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, c.Process(context.Background()))

	assert.Len(t, c.Snapshot().Messages, 2)
}

func TestAskBeforeProcessedIsRejected(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(t *testing.T, c *Controller, gw *fakeGateway)
	}{
		{name: "not uploaded", setup: func(t *testing.T, c *Controller, gw *fakeGateway) {}},
		{name: "uploaded", setup: func(t *testing.T, c *Controller, gw *fakeGateway) {
			require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
		}},
		{name: "processing failed", setup: func(t *testing.T, c *Controller, gw *fakeGateway) {
			require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
			gw.submitErr = domain.NewRejectedError("submit_document", 500, "x")
			require.Error(t, c.Process(context.Background()))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{answer: "a"}
			c := newController(t, gw, nil)
			tc.setup(t, c, gw)
			before := c.Status()

			res, err := c.Ask(context.Background(), "What is the total revenue?")

			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.Empty(t, gw.asks)
			assert.Empty(t, c.Snapshot().Messages)
			assert.Equal(t, before, c.Status())
		})
	}
}

func TestAskBlankQuestionIsRejected(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	c := processed(t, gw)

	_, err := c.Ask(context.Background(), "   ")

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, gw.asks)
	assert.Empty(t, c.Snapshot().Messages)
}

func TestAskSuccessScenario(t *testing.T) {
	gw := &fakeGateway{answer: "$4.2M"}
	c := processed(t, gw)

	res, err := c.Ask(context.Background(), "What is the total revenue?")

	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, "$4.2M", res.Answer.Content)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is the total revenue?", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "$4.2M", msgs[1].Content)
	assert.Equal(t, domain.StatusProcessed, c.Status())

	require.Len(t, gw.asks, 1)
	assert.Equal(t, askCall{"What is the total revenue?", "report.pdf", 0.7, "http://localhost:8000"}, gw.asks[0])
}

func TestAskTranscriptGrowsByTwoPerQuestion(t *testing.T) {
	gw := &fakeGateway{answer: "ok"}
	c := processed(t, gw)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := c.Ask(context.Background(), "question")
		require.NoError(t, err)
	}

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 2*n)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role)
		} else {
			assert.Equal(t, domain.RoleAssistant, m.Role)
		}
		if i > 0 {
			assert.False(t, m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
}

func TestAskTimeoutIsRecordedInBand(t *testing.T) {
	gw := &fakeGateway{askErr: domain.NewUnreachableError("ask_question", context.DeadlineExceeded)}
	c := processed(t, gw)

	res, err := c.Ask(context.Background(), "q")

	require.NoError(t, err)
	assert.True(t, domain.IsUnreachable(res.Err))
	assert.Equal(t, "Error when calling backend: context deadline exceeded", res.Answer.Content)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "q", msgs[0].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "deadline exceeded")
	assert.Equal(t, domain.StatusProcessed, c.Status())
}

func TestAskRejectionIsRecordedInBand(t *testing.T) {
	gw := &fakeGateway{askErr: domain.NewRejectedError("ask_question", 422, "bad pdf_name")}
	c := processed(t, gw)

	res, err := c.Ask(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "Error from backend: 422 - bad pdf_name", res.Answer.Content)
}

func TestAskUsesCancelledContextSafely(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	c := processed(t, gw)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Ask(ctx, "q")

	require.NoError(t, err)
	assert.Equal(t, "a", res.Answer.Content)
}

func TestClearHistory(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	journal := newFakeJournal()
	c, err := NewController(ControllerOptions{Gateway: gw, Journal: journal})
	require.NoError(t, err)
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	require.NoError(t, c.Process(context.Background()))
	_, err = c.Ask(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, journal.messages[c.ID()], 2)

	c.ClearHistory()

	snap := c.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, domain.StatusProcessed, snap.Status)
	assert.Equal(t, "report.pdf", snap.Document.Name)
	assert.Empty(t, journal.messages[c.ID()])
}

func TestClearHistoryInEmptySession(t *testing.T) {
	c := newController(t, &fakeGateway{}, nil)
	c.ClearHistory()
	assert.Equal(t, domain.StatusNotUploaded, c.Status())
	assert.Empty(t, c.Snapshot().Messages)
}

func TestUpdateConfigAppliesToNextCall(t *testing.T) {
	gw := &fakeGateway{answer: "a"}
	c := processed(t, gw)
	endpoint := "http://abcd.ngrok.io"
	temp := 0.2

	cfg, err := c.UpdateConfig(domain.ConfigUpdate{EndpointURL: &endpoint, RequestTemperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, endpoint, cfg.EndpointURL)

	_, err = c.Ask(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, gw.asks, 1)
	assert.Equal(t, endpoint, gw.asks[0].endpoint)
	assert.Equal(t, 0.2, gw.asks[0].temperature)
	assert.Equal(t, domain.StatusProcessed, c.Status())
}

func TestUpdateConfigRejected(t *testing.T) {
	c := newController(t, &fakeGateway{}, nil)
	before := c.Config()
	temp := 1.5

	_, err := c.UpdateConfig(domain.ConfigUpdate{RequestTemperature: &temp})

	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Equal(t, before, c.Config())
	assert.Equal(t, domain.StatusNotUploaded, c.Status())
}

func TestJournalFailureDoesNotFailEvents(t *testing.T) {
	journal := newFakeJournal()
	journal.fail = true
	gw := &fakeGateway{answer: "a"}
	c := newController(t, gw, journal)

	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	require.NoError(t, c.Process(context.Background()))
	res, err := c.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Answer.Content)
}

func TestEventsAreSerialized(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	gw := &fakeGateway{answer: "a"}
	c := newController(t, gw, nil)
	require.NoError(t, c.SelectFile(handle(t, "report.pdf")))
	gw.submitHook = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- c.Process(context.Background()) }()
	<-entered

	cleared := make(chan struct{})
	go func() {
		c.ClearHistory()
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("ClearHistory ran while Process was in flight")
	default:
	}

	close(release)
	require.NoError(t, <-done)
	<-cleared
	assert.Equal(t, domain.StatusProcessed, c.Status())
}

func TestFailureMessages(t *testing.T) {
	rejected := domain.NewRejectedError("op", 500, "index error")
	unreachable := domain.NewUnreachableError("op", errors.New("dial tcp: connection refused"))

	assert.Equal(t, "Backend returned status 500: index error", ProcessFailureMessage(rejected))
	assert.Equal(t, "Error from backend: 500 - index error", AnswerFailureMessage(rejected))
	assert.Equal(t, "Error when calling backend: dial tcp: connection refused", ProcessFailureMessage(unreachable))
	assert.Equal(t, "Error when calling backend: dial tcp: connection refused", AnswerFailureMessage(unreachable))
	assert.Equal(t, "Error when calling backend: plain", AnswerFailureMessage(errors.New("plain")))
}
