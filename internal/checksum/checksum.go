package checksum

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/oshokin/factorio-up/internal/apperr"
)

// BufferSize is the chunk size used when hashing a stream.
const BufferSize = 1 << 20

// Digest returns the lowercase hex sha256 of everything read from r.
// The stream is consumed in BufferSize chunks and never held in memory whole.
func Digest(r io.Reader) (string, error) {
	hasher := sha256.New()

	buffer := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(hasher, r, buffer); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DigestFile returns the digest of the file at path.
func DigestFile(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	return Digest(file)
}

// FindHash looks up the hash of filename in a "hash  filename" manifest.
// A line matches when it ends with filename; the first match wins.
func FindHash(manifest []byte, filename string) (string, error) {
	if !utf8.Valid(manifest) {
		return "", apperr.InvalidData("failed to parse checksums as utf-8")
	}

	scanner := bufio.NewScanner(bytes.NewReader(manifest))
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), len(manifest)+1)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasSuffix(line, filename) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		return fields[0], nil
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", apperr.NotFoundf("no matching hash found for %s", filename)
}

// Verify recomputes the digest of path and compares it with expected.
func Verify(path, expected string) error {
	actual, err := DigestFile(path)
	if err != nil {
		return err
	}

	if actual != expected {
		return apperr.InvalidDataf("file hash does not match for %s: expected %s, got %s", path, expected, actual)
	}

	return nil
}
