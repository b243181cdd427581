package logging

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLevelOverwriteHandler(t *testing.T) {
	var handlerTests = []struct {
		url             string
		expectedCode    int
		containResponse string
	}{
		{
			url:             "",
			expectedCode:    http.StatusBadRequest,
			containResponse: "required params not set:",
		},
		{
			url:             "?duration=3s",
			expectedCode:    http.StatusBadRequest,
			containResponse: "required params not set:",
		},
		{
			url:             "?level=debug&duration=3s",
			expectedCode:    http.StatusOK,
			containResponse: "Level changed to debug",
		},
		{
			url:             "?level=warn&duration=3s",
			expectedCode:    http.StatusBadRequest,
			containResponse: "is not info or debug",
		},
		{
			url:             "?level=debug&duration=time",
			expectedCode:    http.StatusBadRequest,
			containResponse: "invalid duration",
		},
		{
			url:             "?level=notalevel&duration=3s",
			expectedCode:    http.StatusBadRequest,
			containResponse: "not a valid logrus Level",
		},
	}

	for _, tt := range handlerTests {
		handler := LevelOverwriteHandler(log.InfoLevel)
		req := httptest.NewRequest("GET", "http://example.com/path"+tt.url, nil)
		w := httptest.NewRecorder()
		handler(w, req)

		resp := w.Result()
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), tt.containResponse)
		assert.Equal(t, tt.expectedCode, resp.StatusCode)
	}
}
