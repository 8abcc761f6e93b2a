package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// session is the token file written by login.
type session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

var errLoginRequired = errors.New("no valid token (run `wl login`)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "worklog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "worklog")
}

func sessionPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveSession(s session) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(), b, 0o600)
}

func loadSession(now time.Time) (session, error) {
	b, err := os.ReadFile(sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return session{}, errLoginRequired
	}
	if err != nil {
		return session{}, err
	}
	var s session
	if err := json.Unmarshal(b, &s); err != nil {
		return session{}, err
	}
	if s.AccessToken == "" || now.After(s.ExpiresAt) {
		return session{}, errLoginRequired
	}
	return s, nil
}
