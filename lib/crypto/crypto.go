// Package crypto seals configuration secrets such as the SMTP password so
// they can sit in config.yml. A sealed value reads "enc:<base64>" and is
// opened with the 32 byte APP.SECRET_KEY.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

const Prefix = "enc:"

var ErrKeySize = errors.New("secret key must be 32 bytes")

func gcm(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM
func Seal(key []byte, plaintext string) (string, error) {
	aead, err := gcm(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return Prefix + base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Open returns value unchanged unless it is sealed
func Open(key []byte, value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	aead, err := gcm(key)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", errors.New("sealed value too short")
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// Setting reads a possibly sealed setting. A value that cannot be opened is
// logged and treated as unset.
func Setting(name string) string {
	value := settings.Get(name).String()
	plain, err := Open([]byte(settings.Get("APP.SECRET_KEY").String()), value)
	if err != nil {
		log.Error("cannot open sealed setting %s: %v", name, err)
		return ""
	}
	return plain
}
