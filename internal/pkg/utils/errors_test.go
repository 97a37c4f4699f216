package utils

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/airenas/tarimas/internal/pkg/status"
	"github.com/stretchr/testify/assert"
)

func TestErrCoded_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: no job", NewErrNotFound("no job").Error())
	assert.Equal(t, "BAD_GATEWAY: worker: olia", NewErrCoded(status.ECBadGateway, "worker", errors.New("olia")).Error())
}

func TestErrCoded_Unwrap(t *testing.T) {
	assert.True(t, errors.Is(NewErrCoded(status.ECInternal, "olia", io.EOF), io.EOF))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, status.ECConflict, CodeOf(NewErrConflict("in progress")))
	assert.Equal(t, status.ECConflict, CodeOf(fmt.Errorf("wrap: %w", NewErrConflict("in progress"))))
	assert.Equal(t, status.ECInternal, CodeOf(errors.New("olia")))
}

func TestMsgOf(t *testing.T) {
	assert.Equal(t, "in progress", MsgOf(fmt.Errorf("wrap: %w", NewErrConflict("in progress"))))
	assert.Equal(t, "Service error", MsgOf(errors.New("olia")))
}
