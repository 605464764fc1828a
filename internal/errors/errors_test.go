package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorIsMatchesByCode(t *testing.T) {
	err := NotFound("comment")
	wrapped := fmt.Errorf("check comment: %w", err)

	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(BadRequest("nope")))
	assert.False(t, IsNotFound(stderrors.New("plain")))
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusNotAcceptable, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrInternalError},
		{http.StatusTeapot, ErrBadRequest},
		{http.StatusOK, ErrUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeForStatus(tt.status), "status %d", tt.status)
	}
}

func TestFromStatus(t *testing.T) {
	err := FromStatus(http.StatusForbidden, "delete notification", `{"message":"rls"}`+"\n")
	assert.Equal(t, ErrForbidden, err.Code)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.Equal(t, `{"message":"rls"}`, err.Details)
	assert.Contains(t, err.Error(), "delete notification failed with status 403")
}

func TestCategorize(t *testing.T) {
	assert.Nil(t, Categorize(nil))

	appErr := ValidationError("type", "unknown notification type")
	assert.Same(t, appErr, Categorize(fmt.Errorf("wrap: %w", appErr)))

	assert.Equal(t, ErrTimeout, Categorize(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrNetwork, Categorize(stderrors.New("dial tcp: connection refused")).Code)

	unknown := Categorize(stderrors.New("weird"))
	assert.Equal(t, ErrUnknown, unknown.Code)
	assert.Equal(t, "weird", unknown.Message)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Contains(t, UserMessage(stderrors.New("connection refused")), "Could not reach the server")
	assert.Equal(t, "comment not found", UserMessage(NotFound("comment")))
}
