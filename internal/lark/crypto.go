package lark

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// VerifySignature checks the webhook signature header against
// SHA256(timestamp + nonce + secret + body). An empty secret disables
// verification (development mode).
func VerifySignature(timestamp, nonce, secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(secret))
	h.Write(body)
	calculated := hex.EncodeToString(h.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(calculated), []byte(signature)) == 1
}

// Decrypt decodes an encrypted webhook payload: AES-256-CBC with
// key = SHA256(encryptKey), IV = first 16 bytes of the decoded ciphertext,
// PKCS7 padding stripped from the result.
func Decrypt(encryptKey, encrypted string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < aes.BlockSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	key := sha256.Sum256([]byte(encryptKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	iv := raw[:aes.BlockSize]
	content := raw[aes.BlockSize:]
	if len(content) == 0 || len(content)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d not a block multiple", len(content))
	}

	plain := make([]byte, len(content))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, content)

	return stripPKCS7(plain)
}

func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding length %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("malformed padding")
		}
	}
	return data[:len(data)-pad], nil
}
