package dataprocessing

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint hashes the contents of the given files with BLAKE2b-256 in
// order. The digest changes whenever any file's bytes change and is stable
// across touch-only modifications, which makes it the snapshot cache key.
func Fingerprint(paths []string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		n, err := io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		// File name and length separate the streams so shifting bytes
		// across a file boundary still changes the digest.
		var size [8]byte
		binary.LittleEndian.PutUint64(size[:], uint64(n))
		h.Write(size[:])
		h.Write([]byte(filepath.Base(path)))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// shortFingerprint abbreviates a digest for log lines.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
