package profile

import (
	"encoding/json"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

type jsonCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
}

// ParseCookies reads a cookie blob in either the header form
// "name1=value1; name2=value2" or a JSON array of
// {name, value, domain, path} objects as exported by browser tools.
// Missing domains default to domain and missing paths to "/".
//
// Entries that cannot be used are dropped and counted in skipped; JSON
// that does not parse counts as one. The blob never appears in errors
// or logs, so only the count is reported.
func ParseCookies(blob, domain string) (cookies []driven.Cookie, skipped int) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, 0
	}

	var parsed []driven.Cookie
	if strings.HasPrefix(blob, "[") {
		var entries []jsonCookie
		if err := json.Unmarshal([]byte(blob), &entries); err != nil {
			return nil, 1
		}
		for _, c := range entries {
			parsed = append(parsed, driven.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
		}
	} else {
		for _, part := range strings.Split(blob, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, ok := strings.Cut(part, "=")
			if !ok {
				skipped++
				continue
			}
			parsed = append(parsed, driven.Cookie{
				Name:  strings.TrimSpace(name),
				Value: strings.Trim(strings.TrimSpace(value), `"`),
			})
		}
	}

	for _, c := range parsed {
		if c.Name == "" {
			skipped++
			continue
		}
		if c.Domain == "" {
			c.Domain = domain
		}
		if c.Path == "" {
			c.Path = "/"
		}
		cookies = append(cookies, c)
	}
	return cookies, skipped
}
