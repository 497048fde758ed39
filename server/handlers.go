package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"mdfilter/filter"
)

// pageData is passed to the page template
type pageData struct {
	Title      string
	Source     string
	LiveReload bool
}

// handleMarkdown serves a markdown file rendered through the markdown filter
func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request, filePath string) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read file: %v", err), http.StatusNotFound)
		return
	}

	data := pageData{
		Title:      extractTitle(string(content), filepath.Base(filePath)),
		Source:     string(content),
		LiveReload: s.liveReload != nil,
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.WithError(err).WithField("file", s.relPath(filePath)).Error("Template execution error")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	s.log.WithField("file", s.relPath(filePath)).Debug("markdown")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Index</title>
<link rel="stylesheet" href="/assets/style.css">
</head><body><div class="container"><h1>Markdown Files</h1><ul>
{{- range .Dirs }}<li><a href="{{ . }}/">{{ . }}/</a></li>{{ end -}}
{{- range .Files }}<li><a href="{{ . }}">{{ . }}</a></li>{{ end -}}
{{- if not (or .Dirs .Files) }}<li>No markdown files found</li>{{ end -}}
</ul></div></body></html>`))

// handleIndex generates a directory index page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	var data struct {
		Dirs  []string
		Files []string
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			data.Dirs = append(data.Dirs, name)
			continue
		}
		if strings.HasSuffix(strings.ToLower(name), ".md") {
			data.Files = append(data.Files, name)
		}
	}
	sort.Strings(data.Dirs)
	sort.Strings(data.Files)

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "Failed to render index", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleAssets serves static files (images, CSS, JS)
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	requestPath := strings.TrimPrefix(r.URL.Path, "/assets")
	requestPath = strings.TrimPrefix(requestPath, "/")

	if requestPath == "" {
		http.NotFound(w, r)
		return
	}
	if requestPath == "style.css" {
		s.serveCSS(w, r)
		return
	}

	filePath := filepath.Join(s.config.RootDir, requestPath)
	if !s.isValidPath(filePath) {
		http.Error(w, "Invalid path", http.StatusForbidden)
		return
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", getContentType(strings.ToLower(filepath.Ext(filePath))))
	http.ServeFile(w, r, filePath)
}

// serveCSS serves the CSS file from template directory
func (s *Server) serveCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")

	cssPath := templateFile("style.css")
	if _, err := os.Stat(cssPath); err != nil {
		_, _ = w.Write([]byte(defaultCSS))
		return
	}
	http.ServeFile(w, r, cssPath)
}

// templateFile locates name in a template directory next to the executable,
// falling back to the working directory
func templateFile(name string) string {
	if exePath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exePath), "template", name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path.Join("template", name)
}

// loadTemplate parses template/page.html, or the default page, with the
// filter functions registered in env. The page receives pageData and renders
// the raw markdown itself, e.g. {{ .Source | markdown }} with the configured
// filter name; a template that fails on an empty page is rejected here
func loadTemplate(env *filter.FuncMap, filterName string) (*template.Template, error) {
	tmpl := template.New("page").Funcs(env.Funcs())

	src := defaultPage(filterName)
	if content, err := os.ReadFile(templateFile("page.html")); err == nil {
		src = string(content)
	}
	if _, err := tmpl.Parse(src); err != nil {
		return nil, err
	}
	if err := tmpl.Execute(io.Discard, pageData{}); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// defaultPage returns the built-in page template. The markdown source is
// rendered with the filter registered under filterName
func defaultPage(filterName string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>{{.Title}}</title>
	<link rel="stylesheet" href="/assets/style.css">
</head>
<body>
	<div class="container">
		{{ .Source | ` + filterName + ` }}
	</div>
	{{- if .LiveReload }}
	<script>
	(function () {
		var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/livereload");
		ws.onmessage = function (e) { if (e.data === "reload") { location.reload(); } };
	})();
	</script>
	{{- end }}
</body>
</html>`
}

// extractTitle extracts title from markdown content or uses filename
func extractTitle(content, filename string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return strings.TrimSuffix(filename, ".md")
}

const defaultCSS = `/* Default CSS - template/style.css not found */
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 900px; margin: 0 auto; padding: 20px; line-height: 1.6; }
code { background: #f5f5f5; padding: 2px 6px; border-radius: 3px; }
pre { background: #f5f5f5; padding: 16px; border-radius: 5px; overflow-x: auto; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px 12px; }
th { background: #f8f8f8; }
mark { background: #fff3a3; }`
