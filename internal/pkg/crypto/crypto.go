// Package crypto 加解密与哈希。密钥在进程启动时加载一次，显式传给需要读写加密字段的组件
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const KeySize = 32

var ErrCiphertextTooShort = errors.New("ciphertext太短了")

type Crypto struct {
	aead cipher.AEAD
	salt string
}

// New key 不足 32 字节时补零，超过时截断
func New(key, salt string) (*Crypto, error) {
	k := make([]byte, KeySize)
	copy(k, key)
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Crypto{aead: gcm, salt: salt}, nil
}

// Encrypt 使用AES-GCM加密，空字符串不加密
func (c *Crypto) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt 使用AES-GCM解密
func (c *Crypto) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", err
	}
	size := c.aead.NonceSize()
	if len(ciphertext) < size {
		return "", ErrCiphertextTooShort
	}
	plaintext, err := c.aead.Open(nil, ciphertext[:size], ciphertext[size:], nil)
	if err != nil {
		return "", fmt.Errorf("解密失败 %w", err)
	}
	return string(plaintext), nil
}

// Hash 用于加密字段的等值查找
func (c *Crypto) Hash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value + c.salt))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashEmail 邮箱大小写不敏感
func (c *Crypto) HashEmail(email string) string {
	return c.Hash(strings.ToLower(strings.TrimSpace(email)))
}

// Sign 计算 HMAC-SHA256，十六进制输出
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较签名
func Verify(secret, message, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, message)), []byte(strings.ToLower(signature)))
}
