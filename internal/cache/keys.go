package cache

import (
	"strings"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

// keySeparator joins the parts of a composite cache key. The encoded format
// "{caseId}:{entityType}:{entityId}:{perspective}" is persisted in the
// durable tier and must stay stable across versions.
const keySeparator = ":"

// unknownEntityType marks a key that could not be decoded.
const unknownEntityType = "unknown"

// EncodeKey joins key parts into a single cache key. It fails when any part
// contains the separator character; this is the only caller-visible failure
// in the cache API.
func EncodeKey(parts types.KeyParts) (string, error) {
	segments := []string{parts.CaseID, parts.EntityType, parts.EntityID, parts.Perspective}
	for _, segment := range segments {
		if strings.Contains(segment, keySeparator) {
			return "", errors.New(errors.ErrCodeInvalidKeyPart,
				"key part must not contain "+keySeparator).WithComponent("keycodec").WithOperation("encode")
		}
	}
	if parts.CaseID == "" {
		return strings.Join(segments[1:], keySeparator), nil
	}
	return strings.Join(segments, keySeparator), nil
}

// DecodeKey parses a cache key back into its parts. Parsing is advisory and
// only used by prefetch strategies, so malformed keys yield EntityType
// "unknown" rather than an error.
func DecodeKey(key string) types.KeyParts {
	segments := strings.Split(key, keySeparator)
	switch len(segments) {
	case 4:
		return types.KeyParts{
			CaseID:      segments[0],
			EntityType:  segments[1],
			EntityID:    segments[2],
			Perspective: segments[3],
		}
	case 3:
		return types.KeyParts{
			EntityType:  segments[0],
			EntityID:    segments[1],
			Perspective: segments[2],
		}
	default:
		return types.KeyParts{EntityType: unknownEntityType}
	}
}
