// Package extract pulls quiz text and linked data sources out of HTML.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Text returns the visible text of an HTML document. Script, style and
// noscript subtrees are removed before collection, and runs of blank
// lines are collapsed so model prompts stay compact.
func Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	seenBlank := true
	for _, raw := range strings.Split(doc.Find("body").Text(), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			if !seenBlank {
				lines = append(lines, "")
			}
			seenBlank = true
			continue
		}
		lines = append(lines, line)
		seenBlank = false
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n"), nil
}

// MediaSources returns the URLs of audio elements embedded in the page,
// resolved against the page URL. Both <audio src> and nested <source src>
// forms are handled.
func MediaSources(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var out []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		resolved := resolve(base, raw)
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}

	doc.Find("audio").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			add(src)
		}
		sel.Find("source").Each(func(_ int, inner *goquery.Selection) {
			if src, ok := inner.Attr("src"); ok {
				add(src)
			}
		})
	})
	return out, nil
}

// DataLinks returns anchor hrefs that point at downloadable data files,
// resolved against the page URL.
func DataLinks(body []byte, pageURL string, extensions []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var out []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || !hasExtension(href, extensions) {
			return
		}
		resolved := resolve(base, href)
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	})
	return out, nil
}

func hasExtension(href string, extensions []string) bool {
	parsed, err := url.Parse(href)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, ext := range extensions {
		if strings.HasSuffix(path, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, raw string) string {
	if base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
