package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sameboat/backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormList(t *testing.T) {
	got, err := formList(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = formList([]string{"go", "sql"})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "sql"}, *got)

	got, err = formList([]string{` ["a", "b"]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, *got)

	_, err = formList([]string{"[broken"})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	d, err := parseDate("2026-10-17")
	require.NoError(t, err)
	assert.Equal(t, want, d)

	d, err = parseDate("17-10-2026")
	require.NoError(t, err)
	assert.Equal(t, want, d)

	_, err = parseDate("10/17/2026")
	assert.Error(t, err)
}

func TestWriteResult(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		op     Operation
		data   any
		status int
		want   string
	}{
		{OpCreated, gin.H{"id": "1"}, http.StatusCreated, `{"message":"Created successfully","data":{"id":"1"}}`},
		{OpUpdated, gin.H{"id": "1"}, http.StatusOK, `{"message":"Updated successfully","data":{"id":"1"}}`},
		{OpDeleted, nil, http.StatusOK, `{"message":"Deleted successfully"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeResult(c, tc.op, tc.data)

		assert.Equal(t, tc.status, w.Code)
		assert.JSONEq(t, tc.want, w.Body.String())
	}
}

func TestRequireUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	_, ok := requireUserID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", string(body.Code))

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Set("user_id", "u1")
	id, ok := requireUserID(c)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestWriteErrorHidesUnexpectedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")
	writeError(c, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":"INTERNAL","message":"Internal Server Error","request_id":"req-1"}`, w.Body.String())
	assert.Len(t, c.Errors, 1)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	writeError(c, fmt.Errorf("load: %w", utils.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":"NOT_FOUND","message":"Not Found"}`, w.Body.String())
}
