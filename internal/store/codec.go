package store

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCodec implements pipeline.Codec with gzip compression. Document
// text blobs go through it; URL blobs are stored raw.
type GzipCodec struct {
	// Level is a gzip compression level; zero value means default.
	Level int
}

// Compress gzips data.
func (c GzipCodec) Compress(data []byte) ([]byte, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. The pipeline never reads blobs back,
// but snippet generation downstream does.
func (c GzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
