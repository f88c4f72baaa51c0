package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/perimeterlab/fieldalert/pkg/errors"
)

func performJSON(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	write(c)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Success(c, http.StatusOK, map[string]any{"users_notified": 1})
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Success)
	require.Nil(t, body.Error)
}

func TestErrorRendersAppError(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Error(c, appErrors.NewSenderBlocked("policy violation"))
	})

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, body.Success)
	require.Equal(t, "SENDER_BLOCKED", body.Error.Code)
	require.Equal(t, "policy violation", body.Error.Reason)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	rec, body := performJSON(t, func(c *gin.Context) {
		Error(c, errors.New("unexpected"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
}
