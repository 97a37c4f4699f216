package alignment

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/airenas/tarimas/internal/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign_Phoneme(t *testing.T) {
	got := Align("l a b a s", "l o b a s", Phoneme, []persistence.ErrorOperation{sub(1, "a", "o")})

	assert.Equal(t, Phoneme, got.Type)
	assert.Equal(t, 1, got.Errors)
	require.Equal(t, 5, len(got.Target))
	require.Equal(t, 5, len(got.Recognized))
	require.NotNil(t, got.Target[1].Error)
	assert.Equal(t, persistence.ErrSubstitute, got.Target[1].Error.Type)
	require.NotNil(t, got.Recognized[1].Error)
	assert.Equal(t, "o", got.Recognized[1].Text)
	assert.Nil(t, got.Target[0].Error)
}

func TestAlign_PhonemeNoOpsNotComputed(t *testing.T) {
	got := Align("l a", "l o", Phoneme, nil)

	assert.Equal(t, 0, got.Errors)
	assert.Nil(t, got.Target[1].Error)
}

func TestAlign_WordComputed(t *testing.T) {
	got := Align("labas rytas vaikai", "labas vaikai", Word, nil)

	assert.Equal(t, 1, got.Errors)
	require.NotNil(t, got.Target[1].Error)
	assert.Equal(t, persistence.ErrDelete, got.Target[1].Error.Type)
	assert.Nil(t, got.Target[0].Error)
	assert.Nil(t, got.Target[2].Error)
	assert.Nil(t, got.Recognized[0].Error)
	assert.Nil(t, got.Recognized[1].Error)
}

func TestAlign_WordEqual(t *testing.T) {
	got := Align("labas  rytas", "labas rytas", Word, nil)

	assert.Equal(t, 0, got.Errors)
	assert.Equal(t, []Token{{Text: "labas"}, {Text: "rytas"}}, got.Target)
}

func TestAlign_Empty(t *testing.T) {
	got := Align("", "", Word, nil)

	assert.Empty(t, got.Target)
	assert.Empty(t, got.Recognized)
}

func TestAlign_Timestamps(t *testing.T) {
	op := sub(0, "k", "g")
	op.TimestampStartMs = sql.NullInt64{Int64: 120, Valid: true}
	op.TimestampEndMs = sql.NullInt64{Int64: 340, Valid: true}
	got := Align("k", "g", Phoneme, []persistence.ErrorOperation{op})

	b, err := json.Marshal(got.Target[0].Error)
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"substitute","position":0,"expected":"k","actual":"g",
		"timestampStartMs":120,"timestampEndMs":340}`, string(b))
}

func TestAlign_NoTimestamps(t *testing.T) {
	got := Align("k", "g", Phoneme, []persistence.ErrorOperation{sub(0, "k", "g")})

	b, err := json.Marshal(got.Recognized[0].Error)
	require.Nil(t, err)
	assert.JSONEq(t, `{"type":"substitute","position":0,"expected":"k","actual":"g"}`, string(b))
}
