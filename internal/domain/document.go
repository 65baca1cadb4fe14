package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ProcessingStatus is the lifecycle stage of the current document with
// respect to backend readiness to answer questions about it.
type ProcessingStatus string

// Processing status constants
const (
	StatusNotUploaded      ProcessingStatus = "not_uploaded"
	StatusUploaded         ProcessingStatus = "uploaded"
	StatusProcessing       ProcessingStatus = "processing"
	StatusProcessed        ProcessingStatus = "processed"
	StatusProcessingFailed ProcessingStatus = "processing_failed"
)

// Valid reports whether s is one of the known statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusNotUploaded, StatusUploaded, StatusProcessing, StatusProcessed, StatusProcessingFailed:
		return true
	}
	return false
}

// FileTypePDF is the only document type the backend processes.
const FileTypePDF = "pdf"

// PDFContentType is sent as the part content type on upload.
const PDFContentType = "application/pdf"

// DocumentHandle is the in-memory representation of the file selected for
// processing. It is never persisted.
type DocumentHandle struct {
	Name     string `json:"name"`
	ByteSize int64  `json:"byte_size"`
	RawBytes []byte `json:"-"`
}

// NewDocumentHandle builds a handle from a file name and its contents.
// Only PDF files are accepted.
func NewDocumentHandle(name string, data []byte) (*DocumentHandle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if DetectFileType(name) != FileTypePDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
	}
	return &DocumentHandle{
		Name:     name,
		ByteSize: int64(len(data)),
		RawBytes: data,
	}, nil
}

// SizeKB returns the document size in kilobytes.
func (d *DocumentHandle) SizeKB() float64 {
	return float64(d.ByteSize) / 1024
}

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	return ext[1:]
}

// DocumentInfo is the public view of a DocumentHandle.
type DocumentInfo struct {
	Name     string `json:"name"`
	ByteSize int64  `json:"byte_size"`
}
