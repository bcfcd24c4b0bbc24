package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec compresses snapshot documents with zstd. The encoder and decoder
// are safe for concurrent EncodeAll/DecodeAll calls.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec at the given zstd level (1-22). Zero selects the
// default level.
func NewCodec(level int) (*Codec, error) {
	if level <= 0 {
		level = 3
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Compress returns the compressed form of doc.
func (c *Codec) Compress(doc []byte) []byte {
	return c.encoder.EncodeAll(doc, make([]byte, 0, len(doc)/2))
}

// Decompress reverses Compress.
func (c *Codec) Decompress(blob []byte) ([]byte, error) {
	doc, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

// Hash returns the hex SHA-256 of an uncompressed document.
func Hash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// verify decompresses blob and checks it against the expected hash.
func (c *Codec) verify(blob []byte, hash string) ([]byte, error) {
	doc, err := c.Decompress(blob)
	if err != nil {
		return nil, err
	}
	if hash != "" && Hash(doc) != hash {
		return nil, fmt.Errorf("%w: hash mismatch", ErrCorrupt)
	}
	return doc, nil
}
