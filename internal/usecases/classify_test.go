package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKabiKeywordClassifier(t *testing.T) {
	classifier := KabiKeywordClassifier{}

	tests := []struct {
		name    string
		subject string
		body    string
		want    bool
	}{
		{
			name:    "kabi subject without upstream ref",
			subject: "KABI: restore struct sock layout",
			body:    "Pad the struct back to its original size.",
			want:    true,
		},
		{
			name:    "lowercase keyword",
			subject: "net: kabi fixup after sk_buff change",
			body:    "",
			want:    true,
		},
		{
			name:    "kabi subject but backported from upstream",
			subject: "kabi: sync reserved fields",
			body:    "commit fedcba9876543210fedcba9876543210fedcba98 upstream.\n\nDetails.",
			want:    false,
		},
		{
			name:    "regular backport",
			subject: "mm: fix use-after-free in slab shrinker",
			body:    "commit fedcba9876543210fedcba9876543210fedcba98 upstream.",
			want:    false,
		},
		{
			name:    "keyword inside another word",
			subject: "scsi: mpt3sas: fix skabiter overflow",
			body:    "",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.IsAbiFix(tt.subject, tt.body))
		})
	}
}
