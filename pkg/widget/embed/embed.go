// Package embed reads the host integration snippet: the script tag a site
// owner pastes into their page.
//
//	<script src="https://chat.example.com/widget.js" data-chatbot-id="abc123"></script>
//
// The tenant comes from data-chatbot-id and the API origin from the script's
// own src.
package embed

import (
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const TenantAttribute = "data-chatbot-id"

var (
	ErrNoScript      = errors.New("no script element with a src attribute found")
	ErrMissingTenant = errors.New("missing " + TenantAttribute + " attribute")
)

// Target is what the widget needs from the host page.
type Target struct {
	TenantID string
	BaseURL  string
}

// Parse scans an HTML fragment for the first script element that carries a
// src. It returns ErrMissingTenant if that element has no tenant attribute.
func Parse(snippet string) (Target, error) {
	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return Target{}, ErrNoScript
			}
			return Target{}, errors.Wrap(z.Err(), "tokenize snippet")
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Script {
				continue
			}
			var src, tenant string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "src":
					src = strings.TrimSpace(a.Val)
				case TenantAttribute:
					tenant = strings.TrimSpace(a.Val)
				}
			}
			if src == "" {
				continue
			}
			base, err := Origin(src)
			if err != nil {
				return Target{}, err
			}
			if tenant == "" {
				return Target{}, ErrMissingTenant
			}
			return Target{TenantID: tenant, BaseURL: base}, nil
		}
	}
}

// Origin returns scheme://host of an absolute URL.
func Origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "parse script src %q", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.Errorf("script src %q is not an absolute url", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
