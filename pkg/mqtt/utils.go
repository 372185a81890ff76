package mqtt

import (
	"net/url"
	"strings"
)

func urlPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

func join(parts ...string) string {
	// trim parts
	var list []string
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			list = append(list, part)
		}
	}

	return strings.Join(list, "/")
}
