package gateway

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// zlibSuffix terminates every complete zlib-stream frame Discord sends.
var zlibSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// inflator decompresses a gateway's zlib-stream, which is one continuous
// deflate stream spread across frames rather than one stream per frame.
// It must be reset whenever the underlying connection is replaced.
type inflator struct {
	reader io.ReadCloser
	buf    bytes.Buffer
}

// decompress takes one complete gateway frame and returns the bytes it
// decompresses to. A frame not ending in zlibSuffix is not zlib-stream data
// at all (e.g. the uncompressed fallback transport) and is passed through
// unchanged.
func (z *inflator) decompress(data []byte) ([]byte, error) {
	if len(data) < 4 || !bytes.Equal(data[len(data)-4:], zlibSuffix) {
		return data, nil
	}
	z.buf.Write(data)
	defer z.buf.Reset()

	if z.reader == nil {
		r, err := zlib.NewReader(&z.buf)
		if err != nil {
			return nil, fmt.Errorf("gateway: init zlib reader: %w", err)
		}
		z.reader = r
	}
	var out bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := z.reader.Read(chunk)
		out.Write(chunk[:n])
		if err != nil {
			// A sync-flush frame ends in an empty stored block, which the
			// underlying flate reader only reports once z.buf is drained,
			// as EOF/ErrUnexpectedEOF rather than a real stream error.
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("gateway: zlib decompress: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}

// reset discards the running stream; called after a reconnect since the
// server starts a fresh deflate stream on every new connection.
func (z *inflator) reset() {
	if z.reader != nil {
		z.reader.Close()
	}
	z.reader = nil
	z.buf.Reset()
}
