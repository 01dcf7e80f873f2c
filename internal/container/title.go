package container

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageTitle derives the host page title from a frontend address: the path
// segments joined with " > ", or "Home" for the root.
func PageTitle(rawURL, brand string) string {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return brand
	}

	label := "Home"
	var parts []string
	for _, p := range strings.Split(u.EscapedPath(), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		label = strings.Join(parts, " > ")
	}

	if brand == "" {
		return label
	}
	return label + " - " + brand
}

// titleFromHTML returns the text of the first <title> element in doc.
func titleFromHTML(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			inTitle = atom.Lookup(name) == atom.Title
		case html.EndTagToken:
			inTitle = false
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		}
	}
}
