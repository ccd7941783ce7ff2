// Package prefs persists user preferences (volume, broker address, topic)
// as a JSON file in the user config directory. Everything is best effort: a
// missing or unreadable file just means defaults.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/jsonstore"
)

const PREFS_FILENAME = "prefs.json"

// Config struct for initialization options
type Config struct {
	// Directory to store the prefs.json file.
	// If empty, uses OS default config dir + AppName or fallback to ".".
	Directory string
	// Application name used for creating a subdirectory in the OS config dir.
	AppName string
}

// Prefs handles loading and saving user preferences.
type Prefs struct {
	filePath string
	mu       sync.Mutex
	store    *jsonstore.JSONStore
}

// New creates and loads a preferences store.
func New(cfg Config) (*Prefs, error) {
	configDir := cfg.Directory
	appName := cfg.AppName
	if appName == "" {
		appName = "netpiano"
	}

	if configDir == "" {
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		} else {
			configDir = filepath.Join(userConfigDir, appName)
			if err := os.MkdirAll(configDir, 0700); err != nil {
				return nil, fmt.Errorf("failed to create config directory %s: %w", configDir, err)
			}
		}
	}

	p := &Prefs{filePath: filepath.Join(configDir, PREFS_FILENAME)}
	store, err := jsonstore.Open(p.filePath)
	if err != nil {
		// Missing or corrupt file: start over rather than fail the session.
		store = new(jsonstore.JSONStore)
	}
	p.store = store
	return p, nil
}

// Path returns where the preferences are stored.
func (p *Prefs) Path() string {
	return p.filePath
}

// Volume returns the saved volume, ok=false when never saved.
func (p *Prefs) Volume() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var v int
	if err := p.store.Get("volume", &v); err != nil {
		return 0, false
	}
	return v, true
}

// SetVolume saves the volume.
func (p *Prefs) SetVolume(v int) error {
	return p.set("volume", v)
}

// Broker returns the saved broker host and port, ok=false when never saved.
func (p *Prefs) Broker() (host, port string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Get("broker_host", &host); err != nil {
		return "", "", false
	}
	if err := p.store.Get("broker_port", &port); err != nil {
		return "", "", false
	}
	return host, port, true
}

// SetBroker saves the broker address.
func (p *Prefs) SetBroker(host, port string) error {
	p.mu.Lock()
	if err := p.store.Set("broker_host", host); err != nil {
		p.mu.Unlock()
		return err
	}
	if err := p.store.Set("broker_port", port); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()
	return p.save()
}

// Topic returns the saved topic, ok=false when never saved.
func (p *Prefs) Topic() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var t string
	if err := p.store.Get("topic", &t); err != nil {
		return "", false
	}
	return t, true
}

// SetTopic saves the topic.
func (p *Prefs) SetTopic(t string) error {
	return p.set("topic", t)
}

func (p *Prefs) set(key string, value interface{}) error {
	p.mu.Lock()
	if err := p.store.Set(key, value); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()
	return p.save()
}

func (p *Prefs) save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := jsonstore.Save(p.store, p.filePath); err != nil {
		return fmt.Errorf("failed to write prefs file %s: %w", p.filePath, err)
	}
	return nil
}
