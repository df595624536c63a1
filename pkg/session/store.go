package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	pkgerrors "dibbsget/pkg/errors"
)

const (
	keyringService = "dibbsget"
	keyringKey     = "storage_state"
)

// ErrSnapshotNotFound is returned by a store that holds no snapshot.
var ErrSnapshotNotFound = errors.New("no session snapshot stored")

// SnapshotStore persists the raw storage-state document. The snapshot
// carries live session cookies, so stores keep it off the plain filesystem.
type SnapshotStore interface {
	// Store saves the raw snapshot document.
	Store(raw []byte) error

	// Retrieve returns the raw snapshot document.
	Retrieve() ([]byte, error)

	// Delete removes the stored snapshot.
	Delete() error

	// Exists reports whether a snapshot is stored.
	Exists() bool
}

// KeyringStore keeps the snapshot in the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keychain-backed store, verifying the keyring is
// usable on this system.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

// Store saves the snapshot to the system keychain.
func (k *KeyringStore) Store(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("empty snapshot")
	}
	if err := keyring.Set(keyringService, keyringKey, string(raw)); err != nil {
		return fmt.Errorf("failed to store snapshot in keyring: %w", err)
	}
	return nil
}

// Retrieve loads the snapshot from the system keychain.
func (k *KeyringStore) Retrieve() ([]byte, error) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to retrieve snapshot from keyring: %w", err)
	}
	return []byte(data), nil
}

// Delete removes the snapshot from the system keychain.
func (k *KeyringStore) Delete() error {
	err := keyring.Delete(keyringService, keyringKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSnapshotNotFound
	}
	return err
}

// Exists reports whether the keychain holds a snapshot.
func (k *KeyringStore) Exists() bool {
	_, err := keyring.Get(keyringService, keyringKey)
	return err == nil
}

// Load resolves the session snapshot: the explicit file path wins when the
// file exists, otherwise each store is tried in order. Exhausting every
// source is a precondition failure.
func Load(path string, stores ...SnapshotStore) (*StorageState, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadStorageState(path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat session snapshot: %w", err)
		}
	}

	for _, store := range stores {
		raw, err := store.Retrieve()
		if err != nil {
			if errors.Is(err, ErrSnapshotNotFound) {
				continue
			}
			return nil, err
		}
		return ParseStorageState(raw)
	}

	return nil, pkgerrors.Precondition("session snapshot not found at %s and no stored snapshot available; run 'dibbsget session import' or export the browser storage state first", path)
}
