package action

import (
	"net/url"
	"strings"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// HTTP methods the Http action supports.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// HTTP calls an arbitrary endpoint.
type HTTP struct {
	BaseAction
	Method  string
	URI     string
	Headers map[string]string
	Queries map[string]string
	Body    any
	Cookie  string
}

// NewHTTP creates an Http action. The uri may be an absolute URL or a
// workflow expression starting with "@".
func NewHTTP(name, uri, method string) (*HTTP, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if uri == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing uri")
	}
	method = strings.ToUpper(method)
	if method != MethodGet && method != MethodPost {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unsupported method %q", method)
	}
	if !strings.HasPrefix(uri, "@") {
		u, err := url.Parse(uri)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("invalid uri %q", uri)
		}
	}
	return &HTTP{BaseAction: base, Method: method, URI: uri}, nil
}

// Type implements Action.
func (a *HTTP) Type() Type { return TypeHTTP }

// SetHeaders sets the request headers.
func (a *HTTP) SetHeaders(h map[string]string) *HTTP {
	a.Headers = h
	return a
}

// SetQueries sets the query parameters.
func (a *HTTP) SetQueries(q map[string]string) *HTTP {
	a.Queries = q
	return a
}

// SetBody sets the request body.
func (a *HTTP) SetBody(body any) *HTTP {
	a.Body = body
	return a
}

// SetCookie sets the cookie header value.
func (a *HTTP) SetCookie(cookie string) *HTTP {
	a.Cookie = cookie
	return a
}

type httpInputs struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Cookie  string            `json:"cookie,omitempty"`
	Queries map[string]string `json:"queries,omitempty"`
}

// Clone implements Action.
func (a *HTTP) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	c.Headers = copyStrings(a.Headers)
	c.Queries = copyStrings(a.Queries)
	c.Body = copyValue(a.Body)
	return &c
}

// Render implements Action.
func (a *HTTP) Render() *Definition {
	d := a.definition(TypeHTTP)
	d.Inputs = httpInputs{
		Method:  a.Method,
		URI:     a.URI,
		Body:    a.Body,
		Headers: a.Headers,
		Cookie:  a.Cookie,
		Queries: a.Queries,
	}
	return d
}
