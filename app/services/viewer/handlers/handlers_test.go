package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/koin/app/services/viewer/handlers"
	"github.com/ardanlabs/koin/foundation/logger"
)

func Test_UIMux(t *testing.T) {
	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("Should be able to construct a logger: %v", err)
	}
	defer log.Sync()

	app, err := handlers.UIMux(make(chan os.Signal, 1), log, "localhost:8080")
	if err != nil {
		t.Fatalf("Should be able to construct the viewer: %v", err)
	}

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `const node = "localhost:8080"`) {
		t.Fatalf("Should render the index page for the node: %d", w.Code)
	}

	w = httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/assets/viewer.css", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Should serve the embedded assets: %d", w.Code)
	}
}
