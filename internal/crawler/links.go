package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jmylchreest/xcrap/pkg/query"
)

// Links returns the absolute targets of the href attributes of nodes
// matched by q, in document order without duplicates. Fragment-only and
// javascript: links are skipped. When pattern is set only matching URLs
// are returned.
func Links(root query.Node, q query.Query, base string, pattern *regexp.Regexp) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	nodes, err := root.Select(q)
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	for _, n := range nodes {
		href, ok := n.Property("href")
		if !ok {
			continue
		}
		link, ok := resolve(baseURL, href)
		if !ok || seen[link] {
			continue
		}
		if pattern != nil && !pattern.MatchString(link) {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links, nil
}

// Next returns the first link matched by q, used for pagination.
func Next(root query.Node, q query.Query, base string) (string, bool, error) {
	links, err := Links(root, q, base, nil)
	if err != nil || len(links) == 0 {
		return "", false, err
	}
	return links[0], true, nil
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u = base.ResolveReference(u)
	u.Fragment = ""
	return u.String(), true
}
