package mbus

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Decrypt decrypts the ciphertext of a telegram with the AES-GCM keystream,
// using system title and frame counter as the 12 byte nonce.
//
// The authentication tag is not part of the first frame and is not checked,
// the decrypted bytes are returned as-is. Callers validate the plaintext.
func Decrypt(ciphertextHex, keyHex, systemTitleHex, frameCounterHex string) ([]byte, error) {
	key, err := ParseKey(keyHex)
	if err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrDecryption, err)
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrDecryption)
	}
	nonce, err := hex.DecodeString(systemTitleHex + frameCounterHex)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrDecryption, err)
	}
	if len(nonce) != systemTitleLength+frameCounterLength {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrDecryption, systemTitleLength+frameCounterLength, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	// GCM encrypts with CTR starting at inc32(J0), J0 = nonce || 0x00000001
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	binary.BigEndian.PutUint32(iv[12:], 2)

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// ParseKey validates and decodes a hex AES key of 32 or 64 digits.
func ParseKey(input string) ([]byte, error) {
	clean := stripWhitespace(input)
	if len(clean) != 32 && len(clean) != 64 {
		return nil, fmt.Errorf("%w: AES key must be 32 or 64 hex digits, got %d", ErrDecryption, len(clean))
	}
	key, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AES key hex: %v", ErrDecryption, err)
	}
	return key, nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
