package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"api-gateway-go/internal/service"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "echo error",
			method:     http.MethodGet,
			err:        echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large"),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   `{"detail":"Request Entity Too Large"}`,
		},
		{
			name:   "forward error",
			method: http.MethodGet,
			err: &service.ForwardError{
				Kind:    service.KindServiceNotFound,
				Service: "ghost",
			},
			wantStatus: http.StatusNotFound,
			wantBody:   `{"detail":"Service ghost not found"}`,
		},
		{
			name:       "plain error",
			method:     http.MethodGet,
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"detail":"Unexpected error: boom"}`,
		},
		{
			name:       "head has no body",
			method:     http.MethodHead,
			err:        echo.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(tt.method, "/x", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			NewHTTPErrorHandler(discardLogger())(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody == "" {
				assert.Empty(t, rec.Body.String())
				return
			}
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", http.NoBody), rec)
	_ = c.String(http.StatusTeapot, "already sent")

	NewHTTPErrorHandler(discardLogger())(errors.New("late"), c)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "already sent", rec.Body.String())
}
