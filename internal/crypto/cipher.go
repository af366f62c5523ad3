// Package crypto implements the ciphers protecting the search index.
//
// Index keys (words, instance ids) are encrypted deterministically with
// AES-256-CBC under a fixed per-database IV, so equal plaintexts map to equal
// ciphertexts and can be looked up. Everything else (word lists, posting
// payloads) is sealed with AES-256-GCM under a fresh random nonce. Both
// sub-keys are derived from the database key with HKDF-SHA256.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/hkdf"
)

const (
	KeyLength = 32
	IVLength  = aes.BlockSize

	keyInfo   = "search-index/deterministic-key"
	valueInfo = "search-index/value-key"
)

// Cipher is safe for concurrent use.
type Cipher struct {
	keyBlock cipher.Block
	iv       []byte
	aead     cipher.AEAD
	cache    *lru.Cache[string, []byte]
	random   io.Reader
}

// New derives the sub-keys from key and keeps iv for deterministic
// encryption. cacheSize bounds the memoised key encryptions; zero disables
// the cache.
func New(key, iv []byte, cacheSize int) (*Cipher, error) {
	if len(key) != KeyLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "crypto.New", "key must be %d bytes, got %d", KeyLength, len(key))
	}
	if len(iv) != IVLength {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "crypto.New", "iv must be %d bytes, got %d", IVLength, len(iv))
	}
	detKey, err := deriveKey(key, keyInfo)
	if err != nil {
		return nil, err
	}
	valKey, err := deriveKey(key, valueInfo)
	if err != nil {
		return nil, err
	}
	keyBlock, err := aes.NewCipher(detKey)
	if err != nil {
		return nil, fmt.Errorf("creating key cipher: %w", err)
	}
	valBlock, err := aes.NewCipher(valKey)
	if err != nil {
		return nil, fmt.Errorf("creating value cipher: %w", err)
	}
	aead, err := cipher.NewGCM(valBlock)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	c := &Cipher{
		keyBlock: keyBlock,
		iv:       bytes.Clone(iv),
		aead:     aead,
		random:   rand.Reader,
	}
	if cacheSize > 0 {
		c.cache, err = lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating key cache: %w", err)
		}
	}
	return c, nil
}

// FromHex builds a Cipher from hex-encoded key material as found in config.
func FromHex(keyHex, ivHex string, cacheSize int) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "crypto.FromHex", "key is not valid hex")
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "crypto.FromHex", "iv is not valid hex")
	}
	return New(key, iv, cacheSize)
}

// GenerateKeyMaterial returns a fresh random database key and IV.
func GenerateKeyMaterial() (key, iv []byte, err error) {
	key = make([]byte, KeyLength)
	iv = make([]byte, IVLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generating iv: %w", err)
	}
	return key, iv, nil
}

func deriveKey(secret []byte, info string) ([]byte, error) {
	out := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("deriving %s: %w", info, err)
	}
	return out, nil
}

// EncryptKey encrypts plain deterministically.
func (c *Cipher) EncryptKey(plain []byte) []byte {
	if c.cache != nil {
		if enc, ok := c.cache.Get(string(plain)); ok {
			return bytes.Clone(enc)
		}
	}
	padded := pad(plain)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.keyBlock, c.iv).CryptBlocks(out, padded)
	if c.cache != nil {
		c.cache.Add(string(plain), bytes.Clone(out))
	}
	return out
}

// EncryptKeyBase64 is EncryptKey for string keys, encoded for use as a store key.
func (c *Cipher) EncryptKeyBase64(plain string) string {
	return base64.StdEncoding.EncodeToString(c.EncryptKey([]byte(plain)))
}

func (c *Cipher) DecryptKey(enc []byte) ([]byte, error) {
	if len(enc) == 0 || len(enc)%aes.BlockSize != 0 {
		return nil, apperrors.Newf(apperrors.ErrDecryption, "crypto.DecryptKey", "invalid ciphertext length %d", len(enc))
	}
	out := make([]byte, len(enc))
	cipher.NewCBCDecrypter(c.keyBlock, c.iv).CryptBlocks(out, enc)
	return unpad(out)
}

func (c *Cipher) DecryptKeyBase64(enc string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", apperrors.New(apperrors.ErrDecryption, "crypto.DecryptKeyBase64", "invalid base64")
	}
	plain, err := c.DecryptKey(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptValue seals plain under a fresh random nonce. The nonce is prepended
// to the returned ciphertext.
func (c *Cipher) EncryptValue(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := io.ReadFull(c.random, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

func (c *Cipher) DecryptValue(data []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(data) < ns+c.aead.Overhead() {
		return nil, apperrors.Newf(apperrors.ErrDecryption, "crypto.DecryptValue", "ciphertext too short (%d bytes)", len(data))
	}
	plain, err := c.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrDecryption, "crypto.DecryptValue", err.Error())
	}
	return plain, nil
}

func pad(src []byte) []byte {
	n := aes.BlockSize - len(src)%aes.BlockSize
	out := make([]byte, len(src)+n)
	copy(out, src)
	for i := len(src); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(src []byte) ([]byte, error) {
	n := int(src[len(src)-1])
	if n == 0 || n > aes.BlockSize || n > len(src) {
		return nil, apperrors.New(apperrors.ErrDecryption, "crypto.unpad", "invalid padding")
	}
	for _, b := range src[len(src)-n:] {
		if int(b) != n {
			return nil, apperrors.New(apperrors.ErrDecryption, "crypto.unpad", "invalid padding")
		}
	}
	return src[:len(src)-n], nil
}
