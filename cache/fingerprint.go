package cache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex BLAKE2b-256 digest of parts. Each part is
// length-prefixed so ("ab", "c") and ("a", "bc") differ.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileFingerprint keys a file by absolute path, size and modification time,
// mixed with a fingerprint of the settings it is processed with. Editing the
// file or changing the settings yields a new key.
func FileFingerprint(path, configFingerprint string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cache: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cache: stat %s: %w", path, err)
	}
	return Fingerprint(
		abs,
		strconv.FormatInt(info.Size(), 10),
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		configFingerprint,
	), nil
}
