package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeply/sweeply/internal/model"
)

func sampleSnapshot() *model.DiskSnapshot {
	ts := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	return &model.DiskSnapshot{
		ID:        "snap-1",
		Timestamp: ts,
		TotalSize: 3072,
		FileCount: 2,
		Metadata:  map[string]string{"reason": "pre-clean", "host": "test"},
		Entries: []model.SnapshotEntry{
			{Path: "/u/b.txt", Size: 1024, ContentHash: "beef", ModTime: ts},
			{Path: "/u/a.txt", Size: 2048, ContentHash: "cafe", ModTime: ts},
		},
	}
}

func TestSerialize_Canonical(t *testing.T) {
	snap := sampleSnapshot()
	first, err := Serialize(snap)
	require.NoError(t, err)

	// Reversing entry order must not change the byte form.
	snap.Entries[0], snap.Entries[1] = snap.Entries[1], snap.Entries[0]
	second, err := Serialize(snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "2025-05-01T08:30:00Z")
}

func TestCompress_RoundTrip(t *testing.T) {
	data := []byte("ssssssssssssssssssssweeply compresses repetitive payloads well")
	compressed, err := Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	back, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestEncrypt_Layout(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)

	plaintext := []byte("payload")
	blob, err := codec.Encrypt(plaintext)
	require.NoError(t, err)
	// nonce(12) || ciphertext(len) || tag(16)
	assert.Equal(t, nonceSize+len(plaintext)+tagSize, len(blob))

	back, err := codec.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, plaintext, back)
}

func TestDecrypt_RejectsTampering(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)
	blob, err := codec.Encrypt([]byte("payload"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF
	_, err = codec.Decrypt(blob)
	assert.Error(t, err)
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, err := NewCodec("secret-a")
	require.NoError(t, err)
	b, err := NewCodec("secret-b")
	require.NoError(t, err)

	blob, err := a.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, err = b.Decrypt(blob)
	assert.Error(t, err)
}

func TestEncode_FullRoundTrip(t *testing.T) {
	codec, err := NewCodec("test-master-secret")
	require.NoError(t, err)
	snap := sampleSnapshot()

	blob, err := codec.Encode(snap)
	require.NoError(t, err)
	back, err := codec.Decode(blob)
	require.NoError(t, err)

	// Byte-for-byte equal after canonical re-serialization.
	want, err := Serialize(snap)
	require.NoError(t, err)
	got, err := Serialize(back)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
