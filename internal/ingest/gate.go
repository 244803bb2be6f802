// Package ingest hosts the decryption gate applied to device log uploads
// before they enter validation and storage.
package ingest

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// Prepared is the gate's output: the payload and checksum to store, and
// whether decryption replaced them. When Decrypted is true the checksum was
// recomputed from the plaintext and the caller must re-run duplicate
// detection against it, since distinct ciphertexts can decrypt to the same
// plaintext.
type Prepared struct {
	Payload   string
	Checksum  string
	Decrypted bool
}

// Gate transparently decrypts device-encrypted log payloads using the
// device's pre-shared key. Devices without a key, payloads that fail the
// encrypted-shape test, and payloads that fail to decrypt all pass through
// unchanged; decryption failure is a silent fallback, never an ingest error,
// to stay compatible with devices whose plaintext happens to look encrypted.
type Gate struct {
	keys ports.DeviceKeyStore
}

func NewGate(keys ports.DeviceKeyStore) *Gate {
	return &Gate{keys: keys}
}

// Prepare resolves the payload and checksum to store for a device upload.
func (g *Gate) Prepare(ctx context.Context, deviceID uuid.UUID, payload, checksum string) (Prepared, error) {
	passthrough := Prepared{Payload: payload, Checksum: checksum}

	ciphertext, ok := decodeEncryptedShape(payload)
	if !ok {
		return passthrough, nil
	}

	key, err := g.keys.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return passthrough, nil
		}
		return Prepared{}, err
	}

	plaintext, ok := decryptCBC(key.Key, ciphertext)
	if !ok {
		slog.Default().DebugContext(ctx, "payload decryption failed, storing as plaintext",
			"module", "ingest",
			"operation", "decrypt_payload",
			"outcome", "fallback",
			"device_id", deviceID,
			"payload_bytes", len(payload),
		)
		return passthrough, nil
	}

	sum := sha256.Sum256(plaintext)
	return Prepared{
		Payload:   string(plaintext),
		Checksum:  hex.EncodeToString(sum[:]),
		Decrypted: true,
	}, nil
}

// decodeEncryptedShape applies the self-describing shape test: the payload
// must be base64 that re-encodes byte-identically, with decoded length at
// least 32 and a multiple of the AES block size. Anything else is treated
// as plaintext, not as encrypted-and-corrupt.
func decodeEncryptedShape(payload string) ([]byte, bool) {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	if base64.StdEncoding.EncodeToString(decoded) != payload {
		return nil, false
	}
	if len(decoded) < 32 || len(decoded)%aes.BlockSize != 0 {
		return nil, false
	}
	return decoded, true
}

// decryptCBC splits blob into a 16-byte IV and ciphertext, decrypts with
// AES-256-CBC, and strips PKCS#7 padding. Any structural failure, including
// invalid padding from a wrong key, reports false.
func decryptCBC(key, blob []byte) ([]byte, bool) {
	if len(key) != 32 {
		return nil, false
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false
	}

	iv := blob[:aes.BlockSize]
	ciphertext := blob[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, false
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return stripPKCS7(plaintext)
}

func stripPKCS7(padded []byte) ([]byte, bool) {
	if len(padded) == 0 {
		return nil, false
	}
	padLen := int(padded[len(padded)-1])
	if padLen == 0 || padLen > aes.BlockSize || padLen > len(padded) {
		return nil, false
	}
	if !bytes.Equal(padded[len(padded)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, false
	}
	return padded[:len(padded)-padLen], true
}
