package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentHandle(t *testing.T) {
	h, err := NewDocumentHandle(" report.PDF ", make([]byte, 1536))
	require.NoError(t, err)
	assert.Equal(t, "report.PDF", h.Name)
	assert.Equal(t, int64(1536), h.ByteSize)
	assert.InDelta(t, 1.5, h.SizeKB(), 0.0001)
}

func TestNewDocumentHandleRejects(t *testing.T) {
	_, err := NewDocumentHandle("", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewDocumentHandle("notes.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = NewDocumentHandle("report", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, "pdf", DetectFileType("a/b/Report.Pdf"))
	assert.Equal(t, "md", DetectFileType("readme.md"))
	assert.Equal(t, "", DetectFileType("Makefile"))
}

func TestGatewayErrorKinds(t *testing.T) {
	rejected := NewRejectedError("ask_question", 503, "busy")
	assert.True(t, IsRejected(rejected))
	assert.False(t, IsUnreachable(rejected))
	assert.ErrorIs(t, rejected, ErrGateway)
	assert.Equal(t, "ask_question: backend returned status 503: busy", rejected.Error())

	unreachable := NewUnreachableError("submit_document", errors.New("dial tcp: connection refused"))
	assert.True(t, IsUnreachable(unreachable))
	assert.ErrorIs(t, unreachable, ErrGateway)

	state := &InvalidStateError{Event: "QuestionAsked", Status: StatusUploaded}
	assert.ErrorIs(t, state, ErrInvalidState)
	assert.Equal(t, "cannot handle QuestionAsked while status is uploaded", state.Error())
}

func TestProcessingStatusValid(t *testing.T) {
	assert.True(t, StatusProcessingFailed.Valid())
	assert.False(t, ProcessingStatus("done").Valid())
}
