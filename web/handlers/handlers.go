package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templateFS embed.FS

// ScanSummary is what the pages show about one scan
type ScanSummary struct {
	ID               string
	Root             string
	State            string
	ItemsScanned     int64
	IssuesFound      int64
	StartedAt        time.Time
	CurrentDirectory string
}

// ScanLister gives the pages access to the scans known to the server
type ScanLister interface {
	Scans() []ScanSummary
	Scan(id string) (ScanSummary, bool)
}

// Pages renders the browser UI
type Pages struct {
	scans ScanLister
	home  *template.Template
	scan  *template.Template
}

var funcs = template.FuncMap{
	"comma": humanize.Comma,
	"ago":   humanize.Time,
}

// NewPages parses the embedded templates
func NewPages(scans ScanLister) *Pages {
	parse := func(page string) *template.Template {
		return template.Must(template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+page))
	}
	return &Pages{
		scans: scans,
		home:  parse("home.html"),
		scan:  parse("scan.html"),
	}
}

func (p *Pages) HomePage(w http.ResponseWriter, r *http.Request) {
	render(w, p.home, struct {
		Title string
		Scans []ScanSummary
	}{Title: "Preflight", Scans: p.scans.Scans()})
}

func (p *Pages) ScanPage(w http.ResponseWriter, r *http.Request) {
	scan, ok := p.scans.Scan(mux.Vars(r)["id"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	render(w, p.scan, struct {
		Title string
		Scan  ScanSummary
	}{Title: "Scan " + scan.Root, Scan: scan})
}

// render buffers the page so a template error never leaves half a page
func render(w http.ResponseWriter, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
