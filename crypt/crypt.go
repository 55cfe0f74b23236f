// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
)

// Key and IV baked into the game client (aesManager::initialize).
var (
	clientKey = []byte("oLxvgCJjMzYijWIldgKLpUx5qhUhguP1")
	clientIV  = []byte("6NrjyFU04IO9j9Yo")
)

// ErrMalformed is returned for ciphertext that is not hex or not block aligned.
var ErrMalformed = errors.New("malformed ciphertext")

// Codec encrypts and decrypts the client's query payloads.
type Codec struct {
	block cipher.Block
	iv    []byte
}

// Default is the codec for the shipped client key.
var Default = mustCodec(clientKey, clientIV)

// NewCodec creates a codec for the given AES key and 16-byte IV.
func NewCodec(key, iv []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Codec{block: block, iv: bytes.Clone(iv)}, nil
}

func mustCodec(key, iv []byte) *Codec {
	c, err := NewCodec(key, iv)
	if err != nil {
		panic(err)
	}
	return c
}

// Encrypt zero-pads data to the block size and returns the hex ciphertext.
// Trailing zero bytes in data cannot be told apart from padding afterwards.
func (c *Codec) Encrypt(data []byte) string {
	n := len(data)
	if rem := n % aes.BlockSize; rem != 0 || n == 0 {
		n += aes.BlockSize - rem
	}
	buf := make([]byte, n)
	copy(buf, data)

	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(buf, buf)
	return hex.EncodeToString(buf)
}

// Decrypt returns the raw plaintext, padding included.
func (c *Codec) Decrypt(hexData string) ([]byte, error) {
	raw, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrMalformed, len(raw))
	}

	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(raw, raw)
	return raw, nil
}

// Open decrypts a client payload the way the client expects it read:
// the last plaintext byte is a terminator and any zero padding before it is dropped.
func (c *Codec) Open(hexData string) ([]byte, error) {
	plain, err := c.Decrypt(hexData)
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(plain[:len(plain)-1], "\x00"), nil
}

// Seal is the inverse of Open. Test clients and tools use it to build payloads.
func (c *Codec) Seal(plain []byte) string {
	buf := make([]byte, 0, len(plain)+1)
	buf = append(buf, plain...)
	return c.Encrypt(append(buf, 0))
}
