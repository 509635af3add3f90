package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultChunkSize is the read size used when none is configured. Chunked
// reads keep memory flat on multi-gigabyte files and give cancellation a
// regular check point.
const DefaultChunkSize = 2 << 20

// Compute reads r to EOF in chunks and returns the fingerprint: lowercase
// hex SHA-256 of the content plus a "_<sizeBytes>" suffix. The size suffix
// is deliberate collision defense: two blobs whose hashes collide (or get
// truncated by a formatting bug) still differ unless their sizes match too.
//
// ctx is checked between chunks so a huge file cannot pin its worker past
// cancellation.
func Compute(ctx context.Context, r io.Reader, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	digest := sha256.New()
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := io.CopyN(digest, r, chunkSize)
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read chunk at offset %d: %w", total-n, err)
		}
	}

	return Format(digest.Sum(nil), total), nil
}

// Format assembles a fingerprint string from a raw digest and byte size.
func Format(sum []byte, sizeBytes int64) string {
	return hex.EncodeToString(sum) + "_" + strconv.FormatInt(sizeBytes, 10)
}

// Size extracts the byte-size suffix from a fingerprint.
func Size(fp string) (int64, bool) {
	idx := strings.LastIndexByte(fp, '_')
	if idx <= 0 || idx == len(fp)-1 {
		return 0, false
	}
	size, err := strconv.ParseInt(fp[idx+1:], 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

// Valid reports whether fp looks like a well-formed fingerprint:
// a 64-char lowercase hex digest, an underscore, and a decimal size.
func Valid(fp string) bool {
	idx := strings.LastIndexByte(fp, '_')
	if idx != sha256.Size*2 {
		return false
	}
	for _, r := range fp[:idx] {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	_, ok := Size(fp)
	return ok
}
