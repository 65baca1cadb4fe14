package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/pdfqa/internal/domain"
)

// SessionRecord is a journaled session row.
type SessionRecord struct {
	ID           string                  `json:"id"`
	DocumentName string                  `json:"document_name"`
	Status       domain.ProcessingStatus `json:"status"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// SessionRepository journals sessions and their transcripts
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a session in status NotUploaded
func (r *SessionRepository) CreateSession(id string) error {
	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO sessions (id, document_name, status, created_at, updated_at)
		VALUES (?, '', ?, ?, ?)
	`, id, string(domain.StatusNotUploaded), now, now)
	return err
}

// UpdateSession records the current document and status
func (r *SessionRepository) UpdateSession(id, documentName string, status domain.ProcessingStatus) error {
	_, err := r.db.Exec(`
		UPDATE sessions SET document_name = ?, status = ?, updated_at = ? WHERE id = ?
	`, documentName, string(status), time.Now(), id)
	return err
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var status string

	err := r.db.QueryRow(`
		SELECT id, document_name, status, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&rec.ID, &rec.DocumentName, &status, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Status = domain.ProcessingStatus(status)
	return rec, nil
}

// List returns the most recently updated sessions first
func (r *SessionRepository) List(limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, document_name, status, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		var status string
		if err := rows.Scan(&rec.ID, &rec.DocumentName, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Status = domain.ProcessingStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateMessage appends a message to a session's transcript
func (r *SessionRepository) CreateMessage(sessionID string, message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, message.ID, sessionID, string(message.Role), message.Content, message.CreatedAt)

	return err
}

// ClearMessages deletes a session's transcript
func (r *SessionRepository) ClearMessages(sessionID string) error {
	_, err := r.db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID)
	return err
}

// GetMessages retrieves all messages for a session in append order
func (r *SessionRepository) GetMessages(sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(`
		SELECT id, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		var role string

		if err := rows.Scan(&message.ID, &role, &message.Content, &message.CreatedAt); err != nil {
			return nil, err
		}
		message.Role = domain.Role(role)
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// CountQuestions returns the total number of user messages
func (r *SessionRepository) CountQuestions() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE role = ?`, string(domain.RoleUser)).Scan(&count)
	return count, err
}
