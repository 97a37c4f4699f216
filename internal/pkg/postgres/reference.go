package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/tarimas/internal/pkg/persistence"
)

// LoadReference loads reference speech, returns nil if not found
func (db *DB) LoadReference(ctx context.Context, id string) (*persistence.ReferenceSpeech, error) {
	var res persistence.ReferenceSpeech
	err := db.pool.QueryRow(ctx, `SELECT id::text, text_content, storage_key, ipa_transcription, ipa_method 
	FROM reference_speeches WHERE id::text = $1`, id).Scan(&res.ID, &res.TextContent, &res.StorageKey,
		&res.IPATranscription, &res.IPAMethod)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load reference: %w", err)
	}
	return &res, nil
}

// UpdateReferenceIPA saves generated transcription
func (db *DB) UpdateReferenceIPA(ctx context.Context, id, ipa, method string) error {
	res, err := db.pool.Exec(ctx, `UPDATE reference_speeches SET 
	ipa_transcription = $2,
	ipa_method = $3,
	updated_at = $4
	WHERE id::text = $1`, id, ipa, method, time.Now())
	if err != nil {
		return fmt.Errorf("can't update reference: %w", err)
	}
	if res.RowsAffected() != 1 {
		return fmt.Errorf("can't update reference, no records found")
	}
	return nil
}
