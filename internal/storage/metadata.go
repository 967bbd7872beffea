package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		media_path TEXT NOT NULL,
		media_url TEXT NOT NULL DEFAULT '',
		is_video INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		transcript TEXT,
		analysis TEXT,
		error TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recordings_user_created ON recordings(user_id, created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveRecording inserts a new recording row
func (mdb *MetadataDB) SaveRecording(ctx context.Context, rec *types.Recording) error {
	transcript, analysis, err := encodeResults(rec)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO recordings (id, user_id, title, created_at, duration, media_path, media_url, is_video,
		content_type, size, source, status, transcript, analysis, error, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = mdb.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Title, rec.Date.UnixMilli(), rec.Duration, rec.MediaPath, rec.MediaURL(),
		rec.IsVideo, rec.ContentType, rec.Size, rec.Source, rec.Status, transcript, analysis, rec.Error,
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}
	return nil
}

// UpdateRecording writes the mutable fields of an existing recording
func (mdb *MetadataDB) UpdateRecording(ctx context.Context, rec *types.Recording) error {
	transcript, analysis, err := encodeResults(rec)
	if err != nil {
		return err
	}

	query := `
	UPDATE recordings SET title = ?, duration = ?, media_url = ?, status = ?, transcript = ?,
		analysis = ?, error = ?, updated_at = ?
	WHERE id = ? AND user_id = ?
	`

	res, err := mdb.db.ExecContext(ctx, query,
		rec.Title, rec.Duration, rec.MediaURL(), rec.Status, transcript, analysis, rec.Error,
		time.Now().UnixMilli(), rec.ID, rec.UserID)
	if err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: recording %s", ErrNotFound, rec.ID)
	}
	return nil
}

const selectColumns = `
	SELECT id, user_id, title, created_at, duration, media_path, media_url, is_video, content_type,
		size, source, status, transcript, analysis, error
	FROM recordings`

// GetRecording retrieves a recording owned by userID
func (mdb *MetadataDB) GetRecording(ctx context.Context, userID, id string) (*types.Recording, error) {
	row := mdb.db.QueryRowContext(ctx, selectColumns+` WHERE id = ? AND user_id = ?`, id, userID)

	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: recording %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

// ListRecordings returns a user's recordings, newest first
func (mdb *MetadataDB) ListRecordings(ctx context.Context, userID string, limit int) ([]*types.Recording, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := mdb.db.QueryContext(ctx, selectColumns+` WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	recordings := make([]*types.Recording, 0)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	return recordings, nil
}

// DeleteRecording removes a recording row
func (mdb *MetadataDB) DeleteRecording(ctx context.Context, userID, id string) error {
	res, err := mdb.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: recording %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*types.Recording, error) {
	var (
		rec                  types.Recording
		createdAt            int64
		mediaURL             string
		transcript, analysis sql.NullString
	)

	err := s.Scan(&rec.ID, &rec.UserID, &rec.Title, &createdAt, &rec.Duration, &rec.MediaPath, &mediaURL,
		&rec.IsVideo, &rec.ContentType, &rec.Size, &rec.Source, &rec.Status, &transcript, &analysis, &rec.Error)
	if err != nil {
		return nil, err
	}

	rec.Date = time.UnixMilli(createdAt).UTC()
	rec.SetMediaURL(mediaURL)

	if transcript.Valid && transcript.String != "" {
		rec.Transcript = &types.Transcript{}
		if err := json.Unmarshal([]byte(transcript.String), rec.Transcript); err != nil {
			return nil, fmt.Errorf("corrupt transcript for %s: %w", rec.ID, err)
		}
	}
	if analysis.Valid && analysis.String != "" {
		rec.Analysis = &types.SpeechAnalysisResult{}
		if err := json.Unmarshal([]byte(analysis.String), rec.Analysis); err != nil {
			return nil, fmt.Errorf("corrupt analysis for %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

func encodeResults(rec *types.Recording) (transcript, analysis sql.NullString, err error) {
	if rec.Transcript != nil {
		b, err := json.Marshal(rec.Transcript)
		if err != nil {
			return transcript, analysis, fmt.Errorf("failed to marshal transcript: %w", err)
		}
		transcript = sql.NullString{String: string(b), Valid: true}
	}
	if rec.Analysis != nil {
		b, err := json.Marshal(rec.Analysis)
		if err != nil {
			return transcript, analysis, fmt.Errorf("failed to marshal analysis: %w", err)
		}
		analysis = sql.NullString{String: string(b), Valid: true}
	}
	return transcript, analysis, nil
}
