package filter

import (
	"net/url"
	"strings"

	"newsbot/types"
)

// Directory resolves publisher names from article hosts
type Directory struct {
	names map[string]string
}

// NewDirectory builds a directory from a domain -> publisher name map
func NewDirectory(domains map[string]string) *Directory {
	d := &Directory{names: make(map[string]string, len(domains))}
	for domain, name := range domains {
		domain = trimHostPrefixes(strings.ToLower(strings.TrimSpace(domain)))
		if domain != "" && name != "" {
			d.names[domain] = name
		}
	}
	return d
}

// Resolve returns the publisher for an item. The longest configured domain
// suffix of the host wins; unknown hosts fall back to their first label.
func (d *Directory) Resolve(item types.Item) string {
	host := hostOf(item.CanonicalSource())
	if host == "" {
		return ""
	}
	if d != nil {
		for candidate := host; candidate != ""; {
			if name, ok := d.names[candidate]; ok {
				return name
			}
			i := strings.IndexByte(candidate, '.')
			if i < 0 {
				break
			}
			candidate = candidate[i+1:]
		}
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func hostOf(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return trimHostPrefixes(strings.ToLower(u.Hostname()))
}

func trimHostPrefixes(host string) string {
	for {
		switch {
		case strings.HasPrefix(host, "www."):
			host = host[len("www."):]
		case strings.HasPrefix(host, "m."):
			host = host[len("m."):]
		default:
			return host
		}
	}
}
