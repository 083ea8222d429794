package nanoid

import (
	"github.com/ncobase/spacearc/consts"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	defaultSize = 16
)

func getSize(l ...int) int {
	size := defaultSize
	if len(l) > 0 {
		size = l[0]
	}
	return size
}

// Must generate optional length nanoid
func Must(l ...int) string {
	size := getSize(l...)
	return gonanoid.Must(size)
}

// String generate optional length nanoid, use const by default
func String(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(consts.LowerUpper, size)
}

// Lower generate optional length nanoid, use const by default
func Lower(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(consts.Lowercase, size)
}

// Number generate optional length nanoid, use const by default
func Number(l ...int) string {
	size := getSize(l...)
	return gonanoid.MustGenerate(consts.Number, size)
}

// PrimaryKey generate primary key
func PrimaryKey(l ...int) func() string {
	size := consts.PrimaryKeySize
	if len(l) > 0 {
		size = l[0]
	}
	return func() string {
		return gonanoid.MustGenerate(consts.PrimaryKey, size)
	}
}

// OwnerToken generates an opaque token identifying an anonymous job owner.
func OwnerToken() string {
	return gonanoid.MustGenerate(consts.NumLowerUpper, consts.OwnerTokenSize)
}

// IsOwnerToken verifies the shape of an owner token.
func IsOwnerToken(id string) bool {
	if len(id) != consts.OwnerTokenSize {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
