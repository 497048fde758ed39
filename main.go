package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"mdfilter/config"
	"mdfilter/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file (optional)")
		host       = flag.String("host", "localhost", "Host to bind to")
		port       = flag.Int("port", 0, "Port to bind to (0 for auto-selection)")
		file       = flag.String("file", "", "Specific markdown file to serve (optional)")
		dir        = flag.String("dir", ".", "Directory to serve")
		livereload = flag.Bool("livereload", true, "Enable live reload")
		sanitize   = flag.Bool("sanitize", false, "Sanitize rendered markdown")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "text", "Log format (text or json)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags given on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "file":
			cfg.Server.File = *file
		case "dir":
			cfg.Server.Dir = *dir
		case "livereload":
			cfg.Server.LiveReload = livereload
		case "sanitize":
			cfg.Filter.SanitizeByDefault = *sanitize
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		}
	})
	if cfg.Server.LiveReload == nil {
		cfg.Server.LiveReload = livereload
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rootDir, err := filepath.Abs(cfg.Server.Dir)
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve directory path")
	}
	if info, err := os.Stat(rootDir); err != nil || !info.IsDir() {
		log.WithField("dir", rootDir).Fatal("Directory does not exist")
	}

	actualPort := cfg.Server.Port
	if actualPort == 0 {
		actualPort = findAvailablePort(cfg.Server.Host)
		if actualPort == 0 {
			log.Fatal("Failed to find an available port")
		}
	}

	cfg.Filter.Logger = log
	srv, err := server.NewServer(server.Config{
		Host:             cfg.Server.Host,
		Port:             actualPort,
		RootDir:          rootDir,
		File:             cfg.Server.File,
		EnableLiveReload: *cfg.Server.LiveReload,
		Filter:           cfg.Filter,
		Logger:           log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down server...")
		srv.Stop()
		os.Exit(0)
	}()

	log.WithFields(logrus.Fields{
		"dir":      rootDir,
		"file":     cfg.Server.File,
		"url":      fmt.Sprintf("http://%s:%d", cfg.Server.Host, actualPort),
		"sanitize": cfg.Filter.SanitizeByDefault,
	}).Info("Server running, press Ctrl+C to stop")

	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

// newLogger builds the process logger from the logging settings
func newLogger(cfg config.Logging) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log, nil
}

// findAvailablePort scans for an available port starting from 8080
func findAvailablePort(host string) int {
	for port := 8080; port < 65535; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil {
			ln.Close()
			return port
		}
	}
	return 0
}
