package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "udisecli/internal/errors"
	"udisecli/internal/shared/testutil"
	apiv1 "udisecli/pkg/contracts/api/v1"
	"udisecli/pkg/contracts/domain"
)

func newValidationMiddleware(t *testing.T) *ValidationMiddleware {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidateRequest(t *testing.T) {
	m := newValidationMiddleware(t)

	t.Run("passes valid JSON and restores the body", func(t *testing.T) {
		var seen string
		handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			seen = string(body)
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"preview":true}`))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"preview":true}`, seen, "handler should see the original body")
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run for invalid JSON")
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"filters":`))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_JSON")
	})

	t.Run("skips GET requests", func(t *testing.T) {
		called := false
		handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/dataset", strings.NewReader(`not json`))
		handler.ServeHTTP(w, r)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("rejects oversized payloads", func(t *testing.T) {
		handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not run for oversized payloads")
		}))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{}"))
		r.ContentLength = 2 * 1024 * 1024
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "PAYLOAD_TOO_LARGE")
	})
}

func TestValidateStruct(t *testing.T) {
	m := newValidationMiddleware(t)

	requireValidationFailed := func(t *testing.T, err error) *apierrors.APIError {
		t.Helper()
		require.Error(t, err)
		apiErr, ok := err.(*apierrors.APIError)
		require.True(t, ok, "expected *apierrors.APIError, got %T", err)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
		return apiErr
	}

	t.Run("accepts an empty query request", func(t *testing.T) {
		assert.NoError(t, m.ValidateStruct(&apiv1.QueryRequest{}))
	})

	t.Run("accepts a populated query request", func(t *testing.T) {
		eq := 1.0
		req := &apiv1.QueryRequest{
			Filters: domain.FilterState{
				"district":         {In: []string{"PUNE"}},
				"electricity_code": {Eq: &eq},
			},
			Preview:      true,
			PreviewLimit: 100,
		}
		assert.NoError(t, m.ValidateStruct(req))
	})

	t.Run("rejects preview limit above the cap", func(t *testing.T) {
		err := m.ValidateStruct(&apiv1.QueryRequest{PreviewLimit: 501})
		apiErr := requireValidationFailed(t, err)

		details, ok := apiErr.Details.(apierrors.ValidationErrors)
		require.True(t, ok)
		require.Len(t, details.Errors, 1)
		assert.Contains(t, details.Errors[0].Message, "at most 500")
	})

	t.Run("rejects an empty filter key", func(t *testing.T) {
		err := m.ValidateStruct(&apiv1.QueryRequest{
			Filters: domain.FilterState{"": {In: []string{"x"}}},
		})
		requireValidationFailed(t, err)
	})

	t.Run("rejects a filter key with control characters", func(t *testing.T) {
		err := m.ValidateStruct(&apiv1.QueryRequest{
			Filters: domain.FilterState{"dist\x00rict": {In: []string{"x"}}},
		})
		requireValidationFailed(t, err)
	})

	t.Run("accepts an unknown but plausible filter key", func(t *testing.T) {
		// Unknown columns are the filter engine's call, not the validator's.
		err := m.ValidateStruct(&apiv1.QueryRequest{
			Filters: domain.FilterState{"no_such_column": {In: []string{"x"}}},
		})
		assert.NoError(t, err)
	})

	t.Run("rejects a path-traversal export filename", func(t *testing.T) {
		err := m.ValidateStruct(&apiv1.ExportRequest{Filename: "../etc/passwd"})
		apiErr := requireValidationFailed(t, err)

		details, ok := apiErr.Details.(apierrors.ValidationErrors)
		require.True(t, ok)
		require.Len(t, details.Errors, 1)
		assert.Contains(t, details.Errors[0].Message, "plain filename")
	})

	t.Run("accepts a plain export filename", func(t *testing.T) {
		assert.NoError(t, m.ValidateStruct(&apiv1.ExportRequest{Filename: "schools_filtered.csv"}))
	})
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator("application/json")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects a missing content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{}"))
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_CONTENT_TYPE")
	})

	t.Run("rejects an unsupported content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{}"))
		r.Header.Set("Content-Type", "text/plain")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Contains(t, w.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
	})

	t.Run("accepts a matching content type with charset", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader("{}"))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips GET requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/dataset", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips a bodyless POST", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/query", nil)
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("ValidateInt", func(t *testing.T) {
		tests := []struct {
			name       string
			query      string
			wantValue  int
			wantOK     bool
			wantStatus int
		}{
			{name: "absent uses default", query: "", wantValue: 50, wantOK: true, wantStatus: http.StatusOK},
			{name: "in range", query: "limit=200", wantValue: 200, wantOK: true, wantStatus: http.StatusOK},
			{name: "not an integer", query: "limit=abc", wantValue: 0, wantOK: false, wantStatus: http.StatusBadRequest},
			{name: "above max", query: "limit=501", wantValue: 0, wantOK: false, wantStatus: http.StatusBadRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				r := httptest.NewRequest(http.MethodGet, "/api/dataset?"+tt.query, nil)
				got, ok := v.ValidateInt(w, r, "limit", 1, 500, 50)

				assert.Equal(t, tt.wantValue, got)
				assert.Equal(t, tt.wantOK, ok)
				if !tt.wantOK {
					assert.Equal(t, tt.wantStatus, w.Code)
				}
			})
		}
	})

	t.Run("ValidateBool", func(t *testing.T) {
		tests := []struct {
			name      string
			query     string
			wantValue bool
			wantOK    bool
		}{
			{name: "absent uses default", query: "", wantValue: false, wantOK: true},
			{name: "numeric true", query: "force=1", wantValue: true, wantOK: true},
			{name: "word false", query: "force=false", wantValue: false, wantOK: true},
			{name: "garbage", query: "force=banana", wantValue: false, wantOK: false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				r := httptest.NewRequest(http.MethodPost, "/api/dataset/reload?"+tt.query, nil)
				got, ok := v.ValidateBool(w, r, "force", false)

				assert.Equal(t, tt.wantValue, got)
				assert.Equal(t, tt.wantOK, ok)
				if !tt.wantOK {
					assert.Equal(t, http.StatusBadRequest, w.Code)
				}
			})
		}
	})

	t.Run("ValidateEnum", func(t *testing.T) {
		allowed := []string{"json", "yaml"}

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/catalog?format=yaml", nil)
		got, ok := v.ValidateEnum(w, r, "format", allowed, "json")
		assert.True(t, ok)
		assert.Equal(t, "yaml", got)

		w = httptest.NewRecorder()
		r = httptest.NewRequest(http.MethodGet, "/api/catalog", nil)
		got, ok = v.ValidateEnum(w, r, "format", allowed, "json")
		assert.True(t, ok)
		assert.Equal(t, "json", got)

		w = httptest.NewRecorder()
		r = httptest.NewRequest(http.MethodGet, "/api/catalog?format=xml", nil)
		_, ok = v.ValidateEnum(w, r, "format", allowed, "json")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
