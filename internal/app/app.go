// Package app wires the scan engine, persistence and HTTP surface together.
package app

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kishor/mergescan/internal/capture"
	"github.com/kishor/mergescan/internal/catalog"
	"github.com/kishor/mergescan/internal/scan"
	"github.com/kishor/mergescan/internal/server"
	"github.com/kishor/mergescan/internal/store"
	"github.com/kishor/mergescan/internal/template"
)

// Config holds configuration options for the application.
type Config struct {
	// DataDir holds the database and config file; defaults to ~/.mergescan.
	DataDir string
	// TemplateDir holds the template images and catalog.json; defaults to
	// DataDir/templates.
	TemplateDir string
	// StaticDir is served at /; empty disables static files.
	StaticDir string
	// Addr is the HTTP listen address; defaults to :8080.
	Addr string
	// Source is the video source for the default grabber (device ID or
	// path/URL). Ignored when Grabber is set.
	Source interface{}
	// Grabber overrides the frame source, primarily for tests.
	Grabber capture.Grabber
}

// App owns the assembled pieces: template store, engine, SQLite store and
// HTTP server.
type App struct {
	config   Config
	db       *store.Store
	tplStore *template.Store
	grabber  capture.Grabber
	engine   *scan.Engine
	server   *server.Server
}

// New builds the application: config and catalog are loaded from DataDir,
// templates from TemplateDir, and the engine is wired to the SQLite recorder.
func New(config Config) (*App, error) {
	if config.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		config.DataDir = filepath.Join(home, ".mergescan")
	}
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if config.TemplateDir == "" {
		config.TemplateDir = filepath.Join(config.DataDir, "templates")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}

	db, err := store.New(filepath.Join(config.DataDir, "mergescan.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cfg, err := scan.LoadConfig(filepath.Join(config.DataDir, "config.json"))
	if err != nil {
		log.Printf("Config load failed, using defaults: %v", err)
	}

	cat, err := catalog.Load(filepath.Join(config.TemplateDir, "catalog.json"))
	if err != nil {
		log.Printf("Catalog load failed, using defaults: %v", err)
	}

	tplStore := template.NewStore(cat)

	grabber := config.Grabber
	if grabber == nil {
		source := config.Source
		if source == nil {
			source = 0
		}
		grabber = capture.NewVideoGrabber(source)
	}

	engine := scan.New(cfg, tplStore, grabber)
	engine.SetRecorder(db.Scans())

	a := &App{
		config:   config,
		db:       db,
		tplStore: tplStore,
		grabber:  grabber,
		engine:   engine,
		server: server.New(server.Config{
			StaticDir: config.StaticDir,
			Store:     db,
			Engine:    engine,
		}),
	}

	if n, err := a.LoadTemplates(); err != nil {
		log.Printf("Template load failed: %v", err)
	} else {
		log.Printf("Loaded %d templates from %s", n, config.TemplateDir)
	}

	return a, nil
}

// LoadTemplates scans TemplateDir for image files and loads them into the
// template store at the configured resize factor.
func (a *App) LoadTemplates() (int, error) {
	entries, err := os.ReadDir(a.config.TemplateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(a.config.TemplateDir, e.Name()))
		}
	}
	sort.Strings(paths)

	return a.tplStore.Load(paths, a.engine.Config().ResizeFactor), nil
}

// Engine returns the scan engine.
func (a *App) Engine() *scan.Engine {
	return a.engine
}

// Store returns the SQLite store.
func (a *App) Store() *store.Store {
	return a.db
}

// Templates returns the template store.
func (a *App) Templates() *template.Store {
	return a.tplStore
}

// Addr returns the configured listen address.
func (a *App) Addr() string {
	return a.config.Addr
}

// SaveConfig persists the engine's current configuration to DataDir.
func (a *App) SaveConfig() error {
	return a.engine.Config().Save(filepath.Join(a.config.DataDir, "config.json"))
}

// Run starts the HTTP server and blocks.
func (a *App) Run() error {
	log.Printf("Starting server on %s", a.config.Addr)
	return a.server.ListenAndServe(a.config.Addr)
}

// Server returns the HTTP handler, for tests and embedding.
func (a *App) Server() *server.Server {
	return a.server
}

// Close stops the live loop and releases every resource the app owns.
func (a *App) Close() {
	a.engine.Stop()
	if err := a.SaveConfig(); err != nil {
		log.Printf("Error saving config: %v", err)
	}
	a.tplStore.Close()
	if err := a.grabber.Close(); err != nil {
		log.Printf("Error closing grabber: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
}
