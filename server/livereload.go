package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// reloadMessage is sent to browsers when a watched file changes
var reloadMessage = []byte("reload")

// LiveReload watches the served tree and tells connected pages to reload
// when a markdown file or page template is written
type LiveReload struct {
	rootDir   string
	watcher   *fsnotify.Watcher
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	broadcast chan []byte
	stopChan  chan struct{}
	stopOnce  sync.Once
	log       logrus.FieldLogger
}

// NewLiveReload creates a new LiveReload instance
func NewLiveReload(rootDir string, log logrus.FieldLogger) (*LiveReload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &LiveReload{
		rootDir:   rootDir,
		watcher:   watcher,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		stopChan:  make(chan struct{}),
		log:       log.WithField("component", "livereload"),
	}, nil
}

// Start begins watching for file changes
func (lr *LiveReload) Start() error {
	if err := lr.watchDirectory(lr.rootDir); err != nil {
		return err
	}

	go lr.watchFiles()
	go lr.broadcastMessages()
	return nil
}

// watchDirectory recursively watches a directory and its non-hidden subdirectories
func (lr *LiveReload) watchDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := lr.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			lr.log.WithError(err).WithField("dir", path).Debug("watch failed")
		}
		return nil
	})
}

// triggersReload reports whether a change to name should reload pages
func triggersReload(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".css", ".html":
		return true
	}
	return false
}

// watchFiles monitors file system events and triggers reloads
func (lr *LiveReload) watchFiles() {
	for {
		select {
		case event, ok := <-lr.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && triggersReload(event.Name) {
				lr.log.WithField("file", event.Name).Debug("changed")
				lr.Notify()
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !strings.HasPrefix(filepath.Base(event.Name), ".") {
						_ = lr.watchDirectory(event.Name)
					}
				}
			}
		case err, ok := <-lr.watcher.Errors:
			if !ok {
				return
			}
			lr.log.WithError(err).Warn("Watcher error")
		case <-lr.stopChan:
			return
		}
	}
}

// Notify queues a reload message for every connected client. It drops the
// message when the queue is full
func (lr *LiveReload) Notify() {
	select {
	case lr.broadcast <- reloadMessage:
	default:
	}
}

// broadcastMessages sends messages to all connected clients
func (lr *LiveReload) broadcastMessages() {
	for {
		select {
		case message := <-lr.broadcast:
			var failed []*websocket.Conn
			lr.clientsMu.RLock()
			for client := range lr.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					lr.log.WithError(err).Debug("Error writing to client")
					failed = append(failed, client)
				}
			}
			lr.clientsMu.RUnlock()

			if len(failed) > 0 {
				lr.clientsMu.Lock()
				for _, client := range failed {
					delete(lr.clients, client)
					client.Close()
				}
				lr.clientsMu.Unlock()
			}
		case <-lr.stopChan:
			return
		}
	}
}

// Clients returns the number of connected clients
func (lr *LiveReload) Clients() int {
	lr.clientsMu.RLock()
	defer lr.clientsMu.RUnlock()
	return len(lr.clients)
}

// HandleWebSocket handles WebSocket connections for live reload
func (lr *LiveReload) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	lr.clientsMu.Lock()
	lr.clients[conn] = true
	lr.clientsMu.Unlock()

	go func() {
		defer func() {
			lr.clientsMu.Lock()
			delete(lr.clients, conn)
			lr.clientsMu.Unlock()
			conn.Close()
		}()

		// Read loop to detect disconnection
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Stop stops the file watcher and closes all connections
func (lr *LiveReload) Stop() {
	lr.stopOnce.Do(func() {
		close(lr.stopChan)
		lr.watcher.Close()

		lr.clientsMu.Lock()
		for client := range lr.clients {
			client.Close()
		}
		lr.clients = make(map[*websocket.Conn]bool)
		lr.clientsMu.Unlock()

		lr.log.Info("Stopped")
	})
}
