// Package handlers contains the full set of handler functions and routes
// supported by the viewer.
package handlers

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"

	"github.com/ardanlabs/koin/business/web/mid"
	"github.com/ardanlabs/koin/foundation/web"
	"go.uber.org/zap"
)

//go:embed assets
var assets embed.FS

// UIMux constructs an http.Handler with all application routes defined. The
// page talks to the node at nodeHost for the chain and the event stream.
func UIMux(shutdown chan os.Signal, log *zap.SugaredLogger, nodeHost string) (*web.App, error) {
	app := web.NewApp(
		shutdown,
		mid.Logger(log),
		mid.Errors(log),
		mid.Panics(),
	)

	// Register the index page for the website.
	ig, err := newIndex(nodeHost)
	if err != nil {
		return nil, fmt.Errorf("loading index template: %w", err)
	}
	app.Handle(http.MethodGet, "", "/", ig.handler)

	// Register the assets.
	static, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(static)))
	f := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		fileServer.ServeHTTP(w, r)
		return nil
	}
	app.Handle(http.MethodGet, "", "/assets/*", f)

	return app, nil
}

// =============================================================================

type index struct {
	tmpl     *template.Template
	nodeHost string
}

func newIndex(nodeHost string) (index, error) {
	tmpl, err := template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return index{}, err
	}

	ig := index{
		tmpl:     tmpl,
		nodeHost: nodeHost,
	}

	return ig, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data := struct {
		NodeHost string
	}{
		NodeHost: ig.nodeHost,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ig.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering index page: %w", err)
	}

	return web.SetStatusCode(ctx, http.StatusOK)
}
