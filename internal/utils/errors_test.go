package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Message(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	assert.Equal(t, "Op: msg: dial tcp: refused", E(CodeUnavailable, "Op", "msg", cause).Error())
	assert.Equal(t, "Op: msg", E(CodeUnavailable, "Op", "msg", nil).Error())
	assert.Equal(t, "msg", E(CodeUnavailable, "", "msg", nil).Error())
	assert.Equal(t, "Op", E(CodeUnavailable, "Op", "", nil).Error())
	assert.Equal(t, "error", E(CodeUnavailable, "", "", nil).Error())
}

func TestCodeOfAndHTTPStatus(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", E(CodeRateLimited, "WS", "slow down", nil))
	assert.Equal(t, CodeRateLimited, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeRateLimited))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(wrapped))

	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("repo: %w", ErrNotFound)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(E(CodeInternal, "Op", "x", nil)))
	assert.Equal(t, Code(""), CodeOf(nil))
}
