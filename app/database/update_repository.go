package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ UpdateRepository = (*UpdateRepositoryImpl)(nil)

// UpdateRepositoryImpl persists the subscription update journal.
type UpdateRepositoryImpl struct {
	db *DB
}

func NewUpdateRepository(db *DB) *UpdateRepositoryImpl {
	return &UpdateRepositoryImpl{db: db}
}

func (r *UpdateRepositoryImpl) RecordUpdate(record UpdateRecord) (int64, error) {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Exec(`
		INSERT INTO subscription_updates (section, url, kind, bytes, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.Section, record.URL, record.Kind, record.Bytes, record.Error, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to record update: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get update id: %w", err)
	}
	return id, nil
}

func (r *UpdateRepositoryImpl) GetRecentUpdates(limit int) ([]UpdateRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, section, url, kind, bytes, error, created_at
		FROM subscription_updates
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent updates: %w", err)
	}
	defer rows.Close()

	var records []UpdateRecord
	for rows.Next() {
		var record UpdateRecord
		err := rows.Scan(&record.ID, &record.Section, &record.URL, &record.Kind,
			&record.Bytes, &record.Error, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update row: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating update rows: %w", err)
	}

	return records, nil
}

func (r *UpdateRepositoryImpl) GetLastUpdate(section string) (*UpdateRecord, error) {
	var record UpdateRecord
	err := r.db.QueryRow(`
		SELECT id, section, url, kind, bytes, error, created_at
		FROM subscription_updates
		WHERE section = ?
		ORDER BY id DESC
		LIMIT 1
	`, section).Scan(&record.ID, &record.Section, &record.URL, &record.Kind,
		&record.Bytes, &record.Error, &record.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last update: %w", err)
	}

	return &record, nil
}

func (r *UpdateRepositoryImpl) GetUpdateCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM subscription_updates").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get update count: %w", err)
	}
	return count, nil
}
