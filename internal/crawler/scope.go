package crawler

import "strings"

// FilterInScope keeps links whose absolute form starts with baseURL.
// Exact string-prefix scoping: no normalization of trailing slashes,
// case, or query strings.
func FilterInScope(links []string, baseURL string) []string {
	var out []string
	for _, link := range links {
		if strings.HasPrefix(link, baseURL) {
			out = append(out, link)
		}
	}
	return out
}
