package server

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"mdfilter/filter"
)

// Config holds server configuration
type Config struct {
	Host             string
	Port             int
	RootDir          string
	File             string
	EnableLiveReload bool
	// Filter configures the markdown filter used by the page template
	Filter filter.Config
	Logger logrus.FieldLogger
}

// Server represents the HTTP server
type Server struct {
	config     Config
	mux        *http.ServeMux
	liveReload *LiveReload
	filter     *filter.Filter
	page       *template.Template
	log        logrus.FieldLogger
}

// NewServer creates a new server instance. It fails when the markdown
// filter or the page template cannot be built
func NewServer(config Config) (*Server, error) {
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if config.Filter.Logger == nil {
		config.Filter.Logger = log
	}

	env := filter.NewFuncMap()
	f, err := filter.New(env, config.Filter)
	if err != nil {
		return nil, errors.Wrap(err, "markdown filter")
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		filter: f,
		log:    log,
	}

	s.page, err = loadTemplate(env, f.Name())
	if err != nil {
		return nil, errors.Wrap(err, "page template")
	}

	// Initialize LiveReload if enabled
	if config.EnableLiveReload {
		s.liveReload, err = NewLiveReload(config.RootDir, log)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize LiveReload")
		} else if err := s.liveReload.Start(); err != nil {
			log.WithError(err).Warn("Failed to start LiveReload")
			s.liveReload = nil
		}
	}

	s.setupRoutes()
	return s, nil
}

// Filter returns the markdown filter used to render pages
func (s *Server) Filter() *filter.Filter {
	return s.filter
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.log.WithField("addr", addr).Info("Listening")
	return http.ListenAndServe(addr, s.mux)
}

// Stop stops the server and cleans up resources
func (s *Server) Stop() {
	if s.liveReload != nil {
		s.liveReload.Stop()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Static assets handler (must be registered first for /assets/ path)
	s.mux.HandleFunc("/assets/", s.handleAssets)

	if s.liveReload != nil {
		s.mux.HandleFunc("/livereload", s.liveReload.HandleWebSocket)
	}

	s.mux.HandleFunc("/", s.handleRequest)
}

// handleRequest handles all non-asset requests (root, markdown files, etc.)
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	requestPath := r.URL.Path

	if requestPath == "/" {
		if s.config.File != "" {
			s.handleMarkdown(w, r, filepath.Join(s.config.RootDir, s.config.File))
			return
		}
		s.handleIndex(w, r, s.config.RootDir)
		return
	}

	requestPath = strings.TrimPrefix(requestPath, "/")
	filePath := filepath.Join(s.config.RootDir, requestPath)

	if info, err := os.Stat(filePath); err == nil && info.IsDir() {
		if !s.isValidPath(filePath) {
			http.Error(w, "Invalid path", http.StatusForbidden)
			return
		}
		// Ensure directory paths end with / so relative links resolve
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		s.handleIndex(w, r, filePath)
		return
	}

	switch filepath.Ext(filePath) {
	case ".md":
		if s.isValidPath(filePath) {
			s.handleMarkdown(w, r, filePath)
			return
		}
	case "":
		// Try adding .md extension
		if withExt := filePath + ".md"; s.isValidPath(withExt) {
			if _, err := os.Stat(withExt); err == nil {
				s.handleMarkdown(w, r, withExt)
				return
			}
		}
	}

	s.handleStaticFile(w, r, filePath)
}

// isValidPath checks if a file path is within the root directory (security)
func (s *Server) isValidPath(filePath string) bool {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return false
	}

	absRoot, err := filepath.Abs(s.config.RootDir)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}

	// Prevent directory traversal
	return rel != ".." && rel != "." && len(rel) > 0 && rel[0] != '.'
}

// handleStaticFile serves a static file from the root directory
func (s *Server) handleStaticFile(w http.ResponseWriter, r *http.Request, filePath string) {
	if !s.isValidPath(filePath) {
		http.Error(w, "Invalid path", http.StatusForbidden)
		return
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	s.log.WithField("file", s.relPath(filePath)).Debug("static file")

	w.Header().Set("Content-Type", getContentType(strings.ToLower(filepath.Ext(filePath))))
	http.ServeFile(w, r, filePath)
}

// relPath returns a path relative to the root directory, or the original path if it's outside the root
func (s *Server) relPath(path string) string {
	rel, err := filepath.Rel(s.config.RootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// getContentType returns the MIME type for a file extension
func getContentType(ext string) string {
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
