// Package encoding holds the lightweight payload codecs used by the
// batching layer.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// MaxDecodedBytes bounds how far a compressed payload may expand. Run
// lengths and deflate streams come off the wire; without this cap a few
// bytes of hostile input could balloon into gigabytes.
const MaxDecodedBytes = 1 << 20

// EncodeRLE encodes a byte payload into base64(varint pairs). The pairs are
// (byte, run_len) repeated. Worth applying only above a size threshold;
// callers gate on that.
func EncodeRLE(payload []byte) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(payload) {
		b := payload[i]
		run := 1
		for j := i + 1; j < len(payload) && payload[j] == b; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(b))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE.
func DecodeRLE(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []byte
	for i := 0; i < len(raw); {
		b, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if b > 0xFF {
			return nil, fmt.Errorf("byte value too large: %d", b)
		}
		if run > MaxDecodedBytes || uint64(len(out))+run > MaxDecodedBytes {
			return nil, fmt.Errorf("decoded payload exceeds %d bytes", MaxDecodedBytes)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, byte(b))
		}
	}
	return out, nil
}
