// Package crypto implements the "aesjson" payload codec: AES-CBC with PKCS#7
// padding, base64 encoded.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

const (
	DefaultKey = "server_date_time"
	DefaultIV  = "client_date_time"
)

type Codec struct {
	block cipher.Block
	iv    []byte
}

func New(key, iv []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("iv must be %d bytes (got %d)", block.BlockSize(), len(iv))
	}
	return &Codec{block: block, iv: append([]byte(nil), iv...)}, nil
}

func (c *Codec) Encrypt(plaintext string) (string, error) {
	buf := pad([]byte(plaintext), c.block.BlockSize())
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(buf, buf)
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (c *Codec) Decrypt(ciphertextB64 string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", err
	}
	bs := c.block.BlockSize()
	if len(buf) == 0 || len(buf)%bs != 0 {
		return "", fmt.Errorf("ciphertext is not a multiple of the block size")
	}
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(buf, buf)
	pt, err := unpad(buf, bs)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
