package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"slices"

	"qualflow/internal/version"
)

// Digest is a SHA-256 cache key.
type Digest [32]byte

// combineDigest: H(content || dep1 || dep2 ...). deps are in deterministic order.
func combineDigest(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func digestString(s string) Digest {
	return sha256.Sum256([]byte(s))
}

// runDigest keys one run: everything that can change its diagnostics. The
// input and classpath digests are content hashes, in classpath order.
func runDigest(opts *Options, input Digest, classpath []Digest) Digest {
	lints := slices.Clone(opts.Lints)
	slices.Sort(lints)
	var buf [16]byte
	binary.LittleEndian.PutUint16(buf[0:], diskCacheSchemaVersion)
	binary.LittleEndian.PutUint64(buf[2:], uint64(max(opts.MaxBlockVisits, 0)))
	parts := []Digest{
		sha256.Sum256(buf[:]),
		digestString(version.Version),
		digestString(opts.Checker),
		sha256.Sum256(opts.CacheSalt),
	}
	for _, l := range lints {
		parts = append(parts, digestString("lint:"+l))
	}
	parts = append(parts, classpath...)
	return combineDigest(input, parts...)
}
