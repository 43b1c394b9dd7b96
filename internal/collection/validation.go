package collection

import (
	"strings"

	"github.com/corvusdb/corvus/internal/dberrors"
)

// ValidateName rejects empty names, names starting with '$' (reserved for
// future system collections), and names containing '.' (would collide
// with dotted-path field access if ever exposed through the same
// namespace).
func ValidateName(name string) error {
	if name == "" {
		return dberrors.New(dberrors.ValidationError, "ValidateName", "collection name must not be empty")
	}
	if strings.HasPrefix(name, "$") {
		return dberrors.New(dberrors.ValidationError, "ValidateName", "collection name must not start with '$'")
	}
	if strings.Contains(name, ".") {
		return dberrors.New(dberrors.ValidationError, "ValidateName", "collection name must not contain '.'")
	}
	return nil
}
