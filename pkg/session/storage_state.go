// Package session reconstructs an authenticated HTTP session from a browser
// storage-state snapshot captured after a human accepts the site's consent
// banner.
package session

import (
	"encoding/json"
	"fmt"
	"os"

	"dibbsget/pkg/errors"
)

// Cookie is one cookie record from a storage-state snapshot.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StorageItem is one persisted key/value pair for an origin.
type StorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin carries persisted browser storage for one origin. It is parsed and
// retained but the downloader itself only needs the cookies.
type Origin struct {
	Origin       string        `json:"origin"`
	LocalStorage []StorageItem `json:"localStorage,omitempty"`
}

// StorageState is the session snapshot document shape: an ordered cookie
// list plus optional per-origin storage.
type StorageState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins,omitempty"`
}

// ParseStorageState decodes a storage-state JSON document.
func ParseStorageState(data []byte) (*StorageState, error) {
	var state StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse storage state: %w", err)
	}
	return &state, nil
}

// LoadStorageState reads and parses a snapshot file. An absent file is a
// precondition failure: the capture step must have run first.
func LoadStorageState(path string) (*StorageState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Precondition("session snapshot not found at %s; export the browser storage state first", path)
		}
		return nil, fmt.Errorf("failed to read session snapshot: %w", err)
	}
	return ParseStorageState(data)
}
