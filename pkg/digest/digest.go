// Package digest computes the content digests used to decide whether a
// mirrored file is up to date.
package digest

import (
	"crypto/sha256"
	"encoding/base32"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

// Digests are encoded with Crockford's base32 alphabet, which omits the
// lookalike characters I, L, O and U.
var encoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").
	WithPadding(base32.NoPadding)

// File returns the digest of the contents of the file at the given path: its
// SHA-256 hash, encoded in unpadded Crockford base32.
func File(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return encoding.EncodeToString(hasher.Sum(nil)), nil
}

// Equal reports whether two digests refer to the same contents. Base32 is
// case-insensitive, so the encodings are compared ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
