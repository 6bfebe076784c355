package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Scrypt cost of new keystores. Tests lower these.
var (
	keystoreScryptN = keystore.StandardScryptN
	keystoreScryptP = keystore.StandardScryptP
)

// SaveToKeystore encrypts key into a v3 keystore file at path. The file is
// written next to its destination and renamed into place with mode 0600, so a
// crash never leaves a truncated keystore behind.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystoreScryptN, keystoreScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts the v3 keystore at path.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt %s: %w", path, err)
	}
	return &PrivateKey{key.PrivateKey}, nil
}

// GenerateKeystore creates a fresh key, stores it at path and returns its
// address.
func GenerateKeystore(path, passphrase string) (Address, error) {
	key, err := GeneratePrivateKey()
	if err != nil {
		return Address{}, err
	}
	if err := SaveToKeystore(path, key, passphrase); err != nil {
		return Address{}, err
	}
	return key.Address(), nil
}
