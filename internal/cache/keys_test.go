package cache

import (
	"testing"

	"github.com/caseprep/caseprep/pkg/errors"
	"github.com/caseprep/caseprep/pkg/types"
)

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name  string
		parts types.KeyParts
		want  string
	}{
		{
			name: "full key",
			parts: types.KeyParts{
				CaseID:      "case-42",
				EntityType:  "dispute",
				EntityID:    "d-7",
				Perspective: "claimant",
			},
			want: "case-42:dispute:d-7:claimant",
		},
		{
			name: "no case id",
			parts: types.KeyParts{
				EntityType:  "dialogue",
				EntityID:    "dlg-3",
				Perspective: "neutral",
			},
			want: "dialogue:dlg-3:neutral",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeKey(tt.parts)
			if err != nil {
				t.Fatalf("EncodeKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeKeyRejectsSeparator(t *testing.T) {
	tests := []struct {
		name  string
		parts types.KeyParts
	}{
		{"case id", types.KeyParts{CaseID: "a:b", EntityType: "dispute", EntityID: "1", Perspective: "p"}},
		{"entity type", types.KeyParts{EntityType: "dis:pute", EntityID: "1", Perspective: "p"}},
		{"entity id", types.KeyParts{EntityType: "dispute", EntityID: "1:2", Perspective: "p"}},
		{"perspective", types.KeyParts{EntityType: "dispute", EntityID: "1", Perspective: "p:q"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeKey(tt.parts)
			if err == nil {
				t.Fatal("EncodeKey() expected error, got nil")
			}
			if !errors.IsInvalidKeyPart(err) {
				t.Errorf("EncodeKey() error = %v, want invalid key part", err)
			}
		})
	}
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want types.KeyParts
	}{
		{
			name: "full key",
			key:  "case-42:dispute:d-7:claimant",
			want: types.KeyParts{CaseID: "case-42", EntityType: "dispute", EntityID: "d-7", Perspective: "claimant"},
		},
		{
			name: "no case id",
			key:  "dialogue:dlg-3:neutral",
			want: types.KeyParts{EntityType: "dialogue", EntityID: "dlg-3", Perspective: "neutral"},
		},
		{
			name: "too few segments",
			key:  "just-a-key",
			want: types.KeyParts{EntityType: "unknown"},
		},
		{
			name: "too many segments",
			key:  "a:b:c:d:e",
			want: types.KeyParts{EntityType: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeKey(tt.key); got != tt.want {
				t.Errorf("DecodeKey(%q) = %+v, want %+v", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	parts := types.KeyParts{
		CaseID:      "case-9",
		EntityType:  "statement",
		EntityID:    "s-14",
		Perspective: "respondent",
	}

	key, err := EncodeKey(parts)
	if err != nil {
		t.Fatalf("EncodeKey() error = %v", err)
	}
	if got := DecodeKey(key); got != parts {
		t.Errorf("round trip = %+v, want %+v", got, parts)
	}
}
