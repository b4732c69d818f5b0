package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

func TestParseCookies(t *testing.T) {
	tests := []struct {
		name        string
		blob        string
		want        []driven.Cookie
		wantSkipped int
	}{
		{
			name: "header form",
			blob: "li_at=abc; JSESSIONID=\"ajax:1\";",
			want: []driven.Cookie{
				{Name: "li_at", Value: "abc", Domain: ".linkedin.com", Path: "/"},
				{Name: "JSESSIONID", Value: "ajax:1", Domain: ".linkedin.com", Path: "/"},
			},
		},
		{
			name: "value containing equals",
			blob: "token=a=b",
			want: []driven.Cookie{{Name: "token", Value: "a=b", Domain: ".linkedin.com", Path: "/"}},
		},
		{
			name: "json export",
			blob: `[{"name":"li_at","value":"abc","domain":"www.linkedin.com","path":"/in"},{"name":"lang","value":"en"}]`,
			want: []driven.Cookie{
				{Name: "li_at", Value: "abc", Domain: "www.linkedin.com", Path: "/in"},
				{Name: "lang", Value: "en", Domain: ".linkedin.com", Path: "/"},
			},
		},
		{
			name:        "bad pairs are dropped",
			blob:        "garbage; li_at=abc; =orphan",
			want:        []driven.Cookie{{Name: "li_at", Value: "abc", Domain: ".linkedin.com", Path: "/"}},
			wantSkipped: 2,
		},
		{name: "empty", blob: "  "},
		{name: "no equals", blob: "garbage", wantSkipped: 1},
		{name: "bad json", blob: "[{", wantSkipped: 1},
		{name: "nameless json entry", blob: `[{"value":"x"}]`, wantSkipped: 1},
		{name: "only separators", blob: ";;"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, skipped := ParseCookies(tc.blob, ".linkedin.com")
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantSkipped, skipped)
		})
	}
}
