package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/promptvault/internal/crypto/clientcrypto"
)

const (
	deviceKeyFile = "device.key"
	saltFile      = "kdf.salt"
)

// masterKey returns the key sealing the stored session. With a passphrase the
// key is derived from it and a per-directory salt; otherwise a random device
// key is kept next to the session.
func masterKey(dir, passphrase string) ([]byte, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if passphrase != "" {
		salt, err := readOrCreate(filepath.Join(dir, saltFile), clientcrypto.SaltLen)
		if err != nil {
			return nil, err
		}
		return clientcrypto.DeriveKey([]byte(passphrase), salt), nil
	}
	return readOrCreate(filepath.Join(dir, deviceKeyFile), clientcrypto.KeyLen)
}

func readOrCreate(path string, n int) ([]byte, error) {
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(b) != n {
			return nil, fmt.Errorf("%s: want %d bytes, got %d", filepath.Base(path), n, len(b))
		}
		return b, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	b, err = clientcrypto.Rand(n)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, err
	}
	return b, nil
}
