package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"

	"github.com/sweeply/sweeply/internal/errors"
	"github.com/sweeply/sweeply/internal/model"
)

const (
	nonceSize = 12
	tagSize   = 16
	keySize   = 32
)

// hkdfInfo domain-separates the backup key from any other key derived
// off the same master secret.
var hkdfInfo = []byte("sweeply backup payload v1")

// Codec turns snapshots into encrypted, compressed blobs and back.
// Payload layout on a provider: nonce(12) || ciphertext || tag(16).
type Codec struct {
	key []byte
}

// NewCodec derives the AES-256 payload key from the keychain-held
// master secret via HKDF-SHA256.
func NewCodec(masterSecret string) (*Codec, error) {
	if masterSecret == "" {
		return nil, errors.Crypto("empty master secret", nil)
	}
	r := hkdf.New(sha256.New, []byte(masterSecret), nil, hkdfInfo)
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Crypto("deriving backup key", err)
	}
	return &Codec{key: key}, nil
}

// Serialize renders the snapshot as canonical JSON: a fixed key order,
// RFC 3339 timestamps, entries ordered by path.
func Serialize(snap *model.DiskSnapshot) ([]byte, error) {
	canon := *snap
	canon.Entries = sortedEntries(snap.Entries)
	// encoding/json already emits struct fields in declaration order
	// and map keys sorted, which together give a stable byte form.
	data, err := json.Marshal(&canon)
	if err != nil {
		return nil, errors.Encoding("serializing snapshot", err)
	}
	return data, nil
}

// Deserialize parses a canonical snapshot payload.
func Deserialize(data []byte) (*model.DiskSnapshot, error) {
	var snap model.DiskSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Encoding("parsing snapshot", err)
	}
	return &snap, nil
}

// Compress deflates the payload and reports the achieved ratio.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, errors.Encoding("initializing compressor", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Encoding("compressing payload", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Encoding("finishing compression", err)
	}
	if len(data) > 0 {
		log.Debug().
			Int("raw", len(data)).
			Int("compressed", buf.Len()).
			Float64("ratio", float64(buf.Len())/float64(len(data))).
			Msg("payload compressed")
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib payload.
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Encoding("initializing decompressor", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Encoding("decompressing payload", err)
	}
	return out, nil
}

// Encrypt seals the payload with AES-256-GCM. Output is
// nonce || ciphertext || tag, the tag being GCM's trailing 16 bytes.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Crypto("initializing cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Crypto("initializing GCM", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Crypto("generating nonce", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce || ciphertext || tag payload.
func (c *Codec) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < nonceSize+tagSize {
		return nil, errors.Crypto("payload too short", nil)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Crypto("initializing cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Crypto("initializing GCM", err)
	}
	plaintext, err := gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, errors.Crypto("authenticated decryption failed", err)
	}
	return plaintext, nil
}

// Encode runs the full outbound pipeline: serialize, compress, encrypt.
func (c *Codec) Encode(snap *model.DiskSnapshot) ([]byte, error) {
	data, err := Serialize(snap)
	if err != nil {
		return nil, err
	}
	compressed, err := Compress(data)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(compressed)
}

// Decode reverses Encode.
func (c *Codec) Decode(blob []byte) (*model.DiskSnapshot, error) {
	compressed, err := c.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(compressed)
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}
