package engine

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// HashAlgo names the digest used to verify a byte copy.
type HashAlgo string

const (
	HashBLAKE3 HashAlgo = "blake3"
	HashXXHash HashAlgo = "xxhash"
)

// ParseHashAlgo validates a user-supplied algorithm name. Empty means BLAKE3.
func ParseHashAlgo(s string) (HashAlgo, error) {
	switch HashAlgo(s) {
	case "", HashBLAKE3:
		return HashBLAKE3, nil
	case HashXXHash:
		return HashXXHash, nil
	default:
		return "", fmt.Errorf("unknown hash %q (want blake3 or xxhash)", s)
	}
}

func (a HashAlgo) newHash() hash.Hash {
	if a == HashXXHash {
		return xxhash.New()
	}
	return blake3.New()
}

// HashFile computes the digest of the file at path, returning it hex-encoded.
func HashFile(path string, algo HashAlgo) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := algo.newHash()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// verifyCopy re-reads both files and compares digests.
func verifyCopy(src, dst string, algo HashAlgo) error {
	srcHash, err := HashFile(src, algo)
	if err != nil {
		return newError(VerifyFailed, "hash source", src, err)
	}
	dstHash, err := HashFile(dst, algo)
	if err != nil {
		return newError(VerifyFailed, "hash destination", dst, err)
	}
	if srcHash != dstHash {
		return newError(VerifyFailed, "checksum mismatch", dst,
			fmt.Errorf("%s: source %s, destination %s", algo, srcHash, dstHash))
	}
	return nil
}
