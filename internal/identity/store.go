package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/promptvault/internal/crypto/clientcrypto"
	"github.com/and161185/promptvault/internal/model"
)

const sessionFile = "session.json"

type sealedSession struct {
	Identity string `json:"identity"`
	Sealed   []byte `json:"sealed"`
}

// FileStore keeps one sealed delegation token under dir.
// The token is sealed with a key derived from master and bound to the identity.
type FileStore struct {
	dir    string
	master []byte
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string, master []byte) *FileStore {
	return &FileStore{dir: dir, master: master}
}

func (s *FileStore) path() string { return filepath.Join(s.dir, sessionFile) }

func sessionKey(master []byte, id model.Identity) ([]byte, error) {
	return clientcrypto.SubKey(master, "promptvault/session:"+id.String())
}

// Save seals and writes c.
func (s *FileStore) Save(c Credentials) error {
	key, err := sessionKey(s.master, c.Identity)
	if err != nil {
		return err
	}
	sealed, err := clientcrypto.Seal(key, []byte(c.Identity), []byte(c.Token))
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	b, err := json.MarshalIndent(sealedSession{Identity: c.Identity.String(), Sealed: sealed}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path(), b, 0o600)
}

// Load reads and opens the stored session. It returns ErrNoSession if none exists.
func (s *FileStore) Load() (Credentials, error) {
	b, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, err
	}
	var ss sealedSession
	if err := json.Unmarshal(b, &ss); err != nil {
		return Credentials{}, fmt.Errorf("decode session: %w", err)
	}
	id, err := model.ParseIdentity(ss.Identity)
	if err != nil {
		return Credentials{}, err
	}
	key, err := sessionKey(s.master, id)
	if err != nil {
		return Credentials{}, err
	}
	tok, err := clientcrypto.Open(key, []byte(id), ss.Sealed)
	if err != nil {
		return Credentials{}, fmt.Errorf("open session: %w", err)
	}
	c, err := ParseCredentials(string(tok))
	if err != nil {
		return Credentials{}, err
	}
	if c.Identity != id {
		return Credentials{}, errors.New("stored session identity mismatch")
	}
	return c, nil
}

// Clear removes the stored session; a missing file is not an error.
func (s *FileStore) Clear() error {
	err := os.Remove(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is a Store held in memory.
type MemStore struct {
	c  Credentials
	ok bool
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Load() (Credentials, error) {
	if !m.ok {
		return Credentials{}, ErrNoSession
	}
	return m.c, nil
}

func (m *MemStore) Save(c Credentials) error { m.c, m.ok = c, true; return nil }

func (m *MemStore) Clear() error { m.c, m.ok = Credentials{}, false; return nil }
