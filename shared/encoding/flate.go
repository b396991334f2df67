package encoding

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// CompressFlate deflates a payload and wraps it in base64 for embedding in
// a JSON frame. Used for world snapshots, which dwarf regular updates.
func CompressFlate(payload []byte) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return "", fmt.Errorf("flate writer: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return "", fmt.Errorf("flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("flate close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressFlate reverses CompressFlate.
func DecompressFlate(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, MaxDecodedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("flate read: %w", err)
	}
	if len(out) > MaxDecodedBytes {
		return nil, fmt.Errorf("decoded payload exceeds %d bytes", MaxDecodedBytes)
	}
	return out, nil
}
