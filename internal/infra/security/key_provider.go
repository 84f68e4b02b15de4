package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrNoSigningKey    = errors.New("no private key found for signing")
	ephemeralKeyID     = "ephemeral"
	ephemeralKeyLength = 2048
)

// KeyProvider defines the interface for providing cryptographic keys.
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey, err error)
	GetVerificationKey(kid string) (*rsa.PublicKey, error)
	ListVerificationKeys() map[string]*rsa.PublicKey
}

// StaticKeyProvider serves an in-memory key set.
type StaticKeyProvider struct {
	signingKID string
	signingKey *rsa.PrivateKey
	keys       map[string]*rsa.PublicKey
}

// NewStaticKeyProvider builds a provider that signs with key under kid.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) (*StaticKeyProvider, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	if key == nil {
		return nil, ErrNoSigningKey
	}
	return &StaticKeyProvider{
		signingKID: kid,
		signingKey: key,
		keys:       map[string]*rsa.PublicKey{kid: &key.PublicKey},
	}, nil
}

// AddVerificationKey registers an additional public key, e.g. a retired signing key.
func (p *StaticKeyProvider) AddVerificationKey(kid string, key *rsa.PublicKey) {
	p.keys[kid] = key
}

// SigningKey returns the active signing key and its kid.
func (p *StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	return p.signingKID, p.signingKey, nil
}

// GetVerificationKey returns the public key for verifying tokens.
func (p *StaticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// ListVerificationKeys returns a copy of the registered public keys.
func (p *StaticKeyProvider) ListVerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

// NewFileKeyProvider reads PEM keys from keyDir. The file name without
// extension is the kid; the lexically first private key signs.
func NewFileKeyProvider(keyDir string) (*StaticKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var provider *StaticKeyProvider
	public := make(map[string]*rsa.PublicKey)

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		path := filepath.Join(keyDir, file.Name())
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM block from %s", path)
		}

		kid := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))

		if private := parsePrivateKey(block.Bytes); private != nil {
			if provider == nil {
				provider, err = NewStaticKeyProvider(kid, private)
				if err != nil {
					return nil, err
				}
			} else {
				public[kid] = &private.PublicKey
			}
			continue
		}

		if pub := parsePublicKey(block.Bytes); pub != nil {
			public[kid] = pub
			continue
		}

		return nil, fmt.Errorf("failed to parse key from file %s", path)
	}

	if provider == nil {
		return nil, ErrNoSigningKey
	}
	for kid, key := range public {
		if _, exists := provider.keys[kid]; !exists {
			provider.AddVerificationKey(kid, key)
		}
	}

	return provider, nil
}

func parsePrivateKey(der []byte) *rsa.PrivateKey {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	return nil
}

func parsePublicKey(der []byte) *rsa.PublicKey {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	return nil
}

// NewKeyProvider loads keys from keyDir. Outside production a missing key
// directory yields a freshly generated key that lives for the process lifetime.
func NewKeyProvider(env, keyDir string) (KeyProvider, bool, error) {
	provider, err := NewFileKeyProvider(keyDir)
	if err == nil {
		return provider, false, nil
	}
	if env == "production" {
		return nil, false, err
	}

	key, genErr := rsa.GenerateKey(rand.Reader, ephemeralKeyLength)
	if genErr != nil {
		return nil, false, fmt.Errorf("generate ephemeral signing key: %w", genErr)
	}
	ephemeral, genErr := NewStaticKeyProvider(ephemeralKeyID, key)
	if genErr != nil {
		return nil, false, genErr
	}
	return ephemeral, true, nil
}
