package handler

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/kdduha/bgremover/internal/session"
	"go.uber.org/zap"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type indexView struct {
	session.Snapshot
	StateName  string
	ResultURL  template.URL
	RefreshSec int
}

func newIndexView(snap session.Snapshot) indexView {
	v := indexView{
		Snapshot:  snap,
		StateName: snap.State.String(),
		// data: URLs are filtered out unless marked safe
		ResultURL: template.URL(snap.Result),
	}
	if snap.State == session.Loading {
		v.RefreshSec = 2
	}
	return v
}

func renderIndex(w http.ResponseWriter, snap session.Snapshot, logger *zap.Logger) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, newIndexView(snap)); err != nil {
		logger.Error("failed to render index", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
