package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soft-kiwi/converse/internal/domain"
)

// Store provides row-level access to the five chat tables. All methods are
// safe for concurrent use; conflicting writes are serialized by sqlite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSession creates the session row if it does not exist and bumps
// last_active. Every dependent insert goes through this first, so no row can
// reference a session that was never created.
func (s *Store) EnsureSession(ctx context.Context, sessionID string) error {
	ts := s.now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (session_id, created_at, last_active) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET last_active = excluded.last_active`,
		sessionID, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	var created, active int64
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, created_at, last_active FROM users WHERE session_id = ?`,
		sessionID,
	).Scan(&sess.ID, &created, &active)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.LastActive = time.Unix(active, 0)
	return &sess, nil
}

func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string) (*domain.Message, error) {
	ts := s.now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add message id: %w", err)
	}
	return &domain.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Unix(ts, 0),
	}, nil
}

// ListMessages returns every message of a session, oldest first. Ties on the
// second-resolution timestamp fall back to insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the last limit messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM chat_messages WHERE session_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]domain.Message, error) {
	var list []domain.Message
	for rows.Next() {
		var m domain.Message
		var ts int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.Unix(ts, 0)
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *Store) AddTurn(ctx context.Context, sessionID, userMessage, botResponse string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, user_message, bot_response, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, userMessage, botResponse, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("add turn: %w", err)
	}
	return nil
}

func (s *Store) ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, bot_response, created_at
		FROM conversations WHERE session_id = ?
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var list []domain.Turn
	for rows.Next() {
		var t domain.Turn
		var ts int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.BotResponse, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = time.Unix(ts, 0)
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *Store) AddUpload(ctx context.Context, up *domain.FileUpload) (*domain.FileUpload, error) {
	ts := s.now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO file_uploads (session_id, filename, original_name, filepath, file_size, mime_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		up.SessionID, up.Filename, up.OriginalName, up.Path, up.Size, up.MimeType, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("add upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add upload id: %w", err)
	}
	out := *up
	out.ID = id
	out.CreatedAt = time.Unix(ts, 0)
	return &out, nil
}

func (s *Store) ListUploads(ctx context.Context, sessionID string) ([]domain.FileUpload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, filename, original_name, filepath, file_size, mime_type, created_at
		FROM file_uploads WHERE session_id = ?
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var list []domain.FileUpload
	for rows.Next() {
		var u domain.FileUpload
		var ts int64
		if err := rows.Scan(&u.ID, &u.SessionID, &u.Filename, &u.OriginalName, &u.Path, &u.Size, &u.MimeType, &ts); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		u.CreatedAt = time.Unix(ts, 0)
		list = append(list, u)
	}
	return list, rows.Err()
}

// GetUpload looks up one upload by stored filename within a session.
func (s *Store) GetUpload(ctx context.Context, sessionID, filename string) (*domain.FileUpload, error) {
	var u domain.FileUpload
	var ts int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, filename, original_name, filepath, file_size, mime_type, created_at
		FROM file_uploads WHERE session_id = ? AND filename = ?`,
		sessionID, filename,
	).Scan(&u.ID, &u.SessionID, &u.Filename, &u.OriginalName, &u.Path, &u.Size, &u.MimeType, &ts)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	u.CreatedAt = time.Unix(ts, 0)
	return &u, nil
}

func (s *Store) AddGeneratedImage(ctx context.Context, sessionID, prompt, imagePath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generated_images (session_id, prompt, image_path, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, prompt, imagePath, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("add generated image: %w", err)
	}
	return nil
}

func (s *Store) ListGeneratedImages(ctx context.Context, sessionID string) ([]domain.GeneratedImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, prompt, image_path, created_at
		FROM generated_images WHERE session_id = ?
		ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list generated images: %w", err)
	}
	defer rows.Close()

	var list []domain.GeneratedImage
	for rows.Next() {
		var g domain.GeneratedImage
		var ts int64
		if err := rows.Scan(&g.ID, &g.SessionID, &g.Prompt, &g.Path, &ts); err != nil {
			return nil, fmt.Errorf("scan generated image: %w", err)
		}
		g.CreatedAt = time.Unix(ts, 0)
		list = append(list, g)
	}
	return list, rows.Err()
}

// ClearSession deletes all rows belonging to the session in one transaction.
// The session row itself is kept so the id stays valid for future messages.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chat_messages", "conversations", "file_uploads", "generated_images"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", table), sessionID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (s *Store) Counts(ctx context.Context, sessionID string) (*domain.SessionStats, error) {
	stats := &domain.SessionStats{}
	queries := []struct {
		table string
		dst   *int64
	}{
		{"chat_messages", &stats.Messages},
		{"conversations", &stats.Turns},
		{"file_uploads", &stats.Files},
		{"generated_images", &stats.Images},
	}
	for _, q := range queries {
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE session_id = ?", q.table), sessionID,
		).Scan(q.dst)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return stats, nil
}
