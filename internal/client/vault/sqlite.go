package vault

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/collabry/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/collabry/internal/common"
	"github.com/dmitrijs2005/collabry/internal/cryptox"
	"github.com/dmitrijs2005/collabry/internal/dbx"
	"github.com/dmitrijs2005/collabry/internal/filex"
	"github.com/dmitrijs2005/collabry/internal/logging"
)

const (
	tokenKey = "token"
	saltKey  = "vault_salt"

	// DeviceKeyFile is the per-device secret the encryption key is derived from.
	DeviceKeyFile = "device.key"
)

// SQLiteVault keeps the token AES-GCM sealed in the metadata table. The key is
// derived from a per-device secret and a salt stored next to the token, so a
// copied database is unreadable without the secret file.
type SQLiteVault struct {
	mu   sync.RWMutex
	repo metadata.Repository
	key  []byte
	log  logging.Logger
}

// OpenSQLiteVault loads (or creates) the device secret under dataDir and
// returns a vault over db.
func OpenSQLiteVault(ctx context.Context, db *sql.DB, dataDir string, log logging.Logger) (*SQLiteVault, error) {
	secret, err := filex.ReadOrCreateSecret(filepath.Join(dataDir, DeviceKeyFile), cryptox.KeySize)
	if err != nil {
		return nil, fmt.Errorf("device secret: %w", err)
	}
	defer common.WipeByteArray(secret)
	return NewSQLiteVault(ctx, db, secret, log)
}

// NewSQLiteVault returns a vault whose key is derived from secret.
func NewSQLiteVault(ctx context.Context, db *sql.DB, secret []byte, log logging.Logger) (*SQLiteVault, error) {
	if log == nil {
		log = logging.Nop{}
	}

	var salt []byte
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		s, err := repo.Get(ctx, saltKey)
		if err != nil {
			return err
		}
		if s == nil {
			s = common.GenerateRandByteArray(cryptox.SaltSize)
			if err := repo.Set(ctx, saltKey, s); err != nil {
				return err
			}
		}
		salt = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault salt: %w", err)
	}

	return &SQLiteVault{
		repo: metadata.NewSQLiteRepository(db),
		key:  cryptox.DeriveKey(secret, salt),
		log:  log,
	}, nil
}

func (v *SQLiteVault) Save(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	ct, nonce, err := cryptox.Seal([]byte(token), v.key)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	if err := v.repo.Set(ctx, tokenKey, append(nonce, ct...)); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (v *SQLiteVault) Read(ctx context.Context) (string, error) {
	v.mu.RLock()
	blob, err := v.repo.Get(ctx, tokenKey)
	v.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if blob == nil {
		return "", nil
	}

	token, err := v.open(blob)
	if err == nil {
		return token, nil
	}

	v.log.Warn(ctx, "stored token cannot be decrypted, discarding", "error", err)
	if err := v.discard(ctx, blob); err != nil {
		return "", err
	}
	return "", nil
}

func (v *SQLiteVault) Remove(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.repo.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func (v *SQLiteVault) open(blob []byte) (string, error) {
	if len(blob) < cryptox.NonceSize {
		return "", cryptox.ErrMalformedCiphertext
	}
	pt, err := cryptox.Open(blob[cryptox.NonceSize:], blob[:cryptox.NonceSize], v.key)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// discard removes blob unless a concurrent Save already replaced it.
func (v *SQLiteVault) discard(ctx context.Context, blob []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	current, err := v.repo.Get(ctx, tokenKey)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if !bytes.Equal(current, blob) {
		return nil
	}
	if err := v.repo.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

var _ Vault = (*SQLiteVault)(nil)
