package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoadAnalysisDetails loads analysis with its recording and reference speech, returns nil if not found
func (db *DB) LoadAnalysisDetails(ctx context.Context, id string) (*persistence.AnalysisDetails, error) {
	an, rec, ref := &persistence.Analysis{}, &persistence.Recording{}, &persistence.ReferenceSpeech{}
	var st string
	err := db.pool.QueryRow(ctx, `SELECT a.id::text, a.user_recording_id::text, a.reference_speech_id::text, a.status,
	a.error, a.overall_score, a.phoneme_score, a.target_phonemes, a.recognized_phonemes, a.phoneme_distance,
	a.target_words, a.recognized_words, a.processing_duration_ms, a.created_at,
	r.id::text, r.user_id, r.storage_key,
	s.id::text, s.text_content, s.storage_key, s.ipa_transcription, s.ipa_method
	FROM analyses a 
	JOIN user_recordings r ON r.id = a.user_recording_id
	JOIN reference_speeches s ON s.id = a.reference_speech_id
	WHERE a.id::text = $1`, id).Scan(&an.ID, &an.UserRecordingID, &an.ReferenceSpeechID, &st,
		&an.Error, &an.OverallScore, &an.PhonemeScore, &an.TargetPhonemes, &an.RecognizedPhonemes, &an.PhonemeDistance,
		&an.TargetWords, &an.RecognizedWords, &an.ProcessingDurationMs, &an.Created,
		&rec.ID, &rec.UserID, &rec.StorageKey,
		&ref.ID, &ref.TextContent, &ref.StorageKey, &ref.IPATranscription, &ref.IPAMethod)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load analysis: %w", err)
	}
	an.Status = status.AnalysisStatus(st)
	return &persistence.AnalysisDetails{Analysis: an, Recording: rec, Reference: ref}, nil
}

// MarkAnalysisProcessing sets processing status and snapshots the target words
func (db *DB) MarkAnalysisProcessing(ctx context.Context, id, targetWords string) error {
	_, err := db.pool.Exec(ctx, `UPDATE analyses SET 
	status = $2,
	error = NULL,
	target_words = $3,
	updated_at = $4
	WHERE id::text = $1`, id, status.AnalysisProcessing, targetWords, time.Now())
	if err != nil {
		return fmt.Errorf("can't update analysis: %w", err)
	}
	return nil
}

// UpdateAnalysisStatus sets the analysis status, error and processing duration
func (db *DB) UpdateAnalysisStatus(ctx context.Context, id string, st status.AnalysisStatus, errMsg sql.NullString,
	durationMs sql.NullInt64) error {
	_, err := db.pool.Exec(ctx, `UPDATE analyses SET 
	status = $2,
	error = $3,
	processing_duration_ms = COALESCE($4, processing_duration_ms),
	updated_at = $5
	WHERE id::text = $1`, id, st, errMsg, durationMs, time.Now())
	if err != nil {
		return fmt.Errorf("can't update analysis: %w", err)
	}
	return nil
}

// CompleteAnalysis saves scores, replaces error operations and quality metrics in one transaction
func (db *DB) CompleteAnalysis(ctx context.Context, res *persistence.AnalysisResult) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("can't start tx: %w", err)
	}
	defer tx.Rollback(ctx)

	an := res.Analysis
	var recID string
	err = tx.QueryRow(ctx, `UPDATE analyses SET 
	status = $2,
	error = NULL,
	overall_score = $3,
	phoneme_score = $4,
	target_phonemes = $5,
	recognized_phonemes = $6,
	phoneme_distance = $7,
	target_words = COALESCE($8, target_words),
	recognized_words = $9,
	processing_duration_ms = $10,
	updated_at = $11
	WHERE id::text = $1 RETURNING user_recording_id::text`, res.AnalysisID, status.AnalysisCompleted,
		an.OverallScore, an.PhonemeScore, an.TargetPhonemes, an.RecognizedPhonemes, an.PhonemeDistance,
		an.TargetWords, an.RecognizedWords, an.ProcessingDurationMs, time.Now()).Scan(&recID)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("no analysis %s", res.AnalysisID)
		}
		return fmt.Errorf("can't update analysis: %w", err)
	}
	if err := replaceErrors(ctx, tx, "phoneme_errors", res.AnalysisID, res.PhonemeErrors); err != nil {
		return err
	}
	if err := replaceErrors(ctx, tx, "word_errors", res.AnalysisID, res.WordErrors); err != nil {
		return err
	}
	if q := res.Quality; q != nil {
		_, err := tx.Exec(ctx, `INSERT INTO audio_quality_metrics(user_recording_id, snr_db, silence_ratio, 
		clipping_ratio, quality_status) VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (user_recording_id) DO UPDATE SET snr_db = EXCLUDED.snr_db, silence_ratio = EXCLUDED.silence_ratio,
		clipping_ratio = EXCLUDED.clipping_ratio, quality_status = EXCLUDED.quality_status`,
			recID, q.SNRDb, q.SilenceRatio, q.ClippingRatio, q.Status)
		if err != nil {
			return fmt.Errorf("can't save quality: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("can't commit: %w", err)
	}
	return nil
}

var errorColumns = []string{"id", "analysis_id", "error_type", "position", "expected", "actual",
	"timestamp_start_ms", "timestamp_end_ms"}

func replaceErrors(ctx context.Context, tx pgx.Tx, table, analysisID string, ops []persistence.ErrorOperation) error {
	if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE analysis_id::text = $1`, analysisID); err != nil {
		return fmt.Errorf("can't delete %s: %w", table, err)
	}
	if len(ops) == 0 {
		return nil
	}
	aID, err := uuid.Parse(analysisID)
	if err != nil {
		return fmt.Errorf("wrong analysis ID: %w", err)
	}
	rows := make([][]any, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []any{uuid.New(), aID, string(op.Type), op.Position, op.Expected, op.Actual,
			op.TimestampStartMs, op.TimestampEndMs})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, errorColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("can't save %s: %w", table, err)
	}
	return nil
}

// LoadErrors loads stored operations of the analysis ordered by position
func (db *DB) LoadErrors(ctx context.Context, analysisID string, word bool) ([]persistence.ErrorOperation, error) {
	table := "phoneme_errors"
	if word {
		table = "word_errors"
	}
	rows, err := db.pool.Query(ctx, `SELECT error_type, position, expected, actual, timestamp_start_ms, timestamp_end_ms
	FROM `+table+` WHERE analysis_id::text = $1 ORDER BY position`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("can't load %s: %w", table, err)
	}
	defer rows.Close()
	res := []persistence.ErrorOperation{}
	for rows.Next() {
		var op persistence.ErrorOperation
		var t string
		if err := rows.Scan(&t, &op.Position, &op.Expected, &op.Actual, &op.TimestampStartMs, &op.TimestampEndMs); err != nil {
			return nil, fmt.Errorf("can't scan %s: %w", table, err)
		}
		op.Type = persistence.ErrorType(t)
		res = append(res, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("can't load %s: %w", table, err)
	}
	return res, nil
}

// LoadRecording loads user recording, returns nil if not found
func (db *DB) LoadRecording(ctx context.Context, id string) (*persistence.Recording, error) {
	var res persistence.Recording
	err := db.pool.QueryRow(ctx, `SELECT id::text, user_id, storage_key FROM user_recordings
		WHERE id::text = $1`, id).Scan(&res.ID, &res.UserID, &res.StorageKey)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load recording: %w", err)
	}
	return &res, nil
}
