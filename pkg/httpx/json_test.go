package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/insightbox/insightbox-backend/pkg/errorx"
)

func TestReadJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Username string `json:"username"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"username":"john"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "syntax error", body: `{"username":`, wantErr: true},
		{name: "unknown field", body: `{"username":"john","admin":true}`, wantErr: true},
		{name: "wrong type", body: `{"username":42}`, wantErr: true},
		{name: "two values", body: `{"username":"a"}{"username":"b"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p payload
			err := ReadJSON(w, r, &p)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "john", p.Username)
				return
			}
			assert.ErrorIs(t, err, errorx.NewMalformedJSON())
		})
	}
}

func TestSuccess(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	Success(w, r, http.StatusCreated, Envelope{"message": "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"ok","success":true}`, w.Body.String())
}
