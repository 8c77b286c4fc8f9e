package tokensource

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound indicates that a Source found no token in the request.
var ErrNotFound = errors.New("tokensource: bearer token not found")

// Source extracts a bearer token from an incoming HTTP request.
type Source interface {
	Extract(*http.Request) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(*http.Request) (string, error)

// Extract implements Source.
func (f SourceFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}

// Type identifies the built-in sources.
type Type string

const (
	TypeAuthorizationHeader Type = "authorization_header"
	TypeHeader              Type = "header"
	TypeCookie              Type = "cookie"
	TypeQuery               Type = "query"
)

// Definition declares a source in configuration.
type Definition struct {
	Type   Type   `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
	Scheme string `json:"scheme" yaml:"scheme"`
}

// Build materializes the definition.
func (d Definition) Build() (Source, error) {
	name := strings.TrimSpace(d.Name)
	scheme := strings.TrimSpace(d.Scheme)

	switch d.Type {
	case TypeAuthorizationHeader:
		if scheme == "" {
			return AuthorizationHeader(), nil
		}
		return Header("Authorization", scheme), nil
	case TypeHeader, TypeCookie, TypeQuery:
		if name == "" {
			return nil, fmt.Errorf("tokensource: %s token source requires a name", d.Type)
		}
	default:
		return nil, fmt.Errorf("tokensource: unsupported token source type %q", d.Type)
	}

	switch d.Type {
	case TypeHeader:
		return Header(name, scheme), nil
	case TypeCookie:
		return Cookie(name), nil
	default:
		return Query(name), nil
	}
}

// AuthorizationHeader reads "Authorization: Bearer <token>".
func AuthorizationHeader() Source {
	return Header("Authorization", "Bearer")
}

// Header reads a token from the named header. A non-empty scheme must prefix the value
// (case-insensitive) and is stripped.
func Header(name, scheme string) Source {
	scheme = strings.TrimSpace(scheme)
	return SourceFunc(func(r *http.Request) (string, error) {
		value := strings.TrimSpace(r.Header.Get(name))
		if scheme != "" {
			prefix := scheme + " "
			if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
				return "", ErrNotFound
			}
			value = strings.TrimSpace(value[len(prefix):])
		}
		return nonEmpty(value)
	})
}

// Cookie reads a token from the named cookie.
func Cookie(name string) Source {
	return SourceFunc(func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		return nonEmpty(c.Value)
	})
}

// Query reads a token from a query string parameter.
func Query(name string) Source {
	return SourceFunc(func(r *http.Request) (string, error) {
		if r.URL == nil {
			return "", ErrNotFound
		}
		return nonEmpty(r.URL.Query().Get(name))
	})
}

func nonEmpty(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// ParseList converts a comma separated list of descriptors:
//
//	authorization_header
//	header:<name>[:<scheme>]
//	cookie:<name>
//	query:<name>
func ParseList(raw string) ([]Definition, error) {
	var defs []Definition
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		def, err := parseDescriptor(part)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func parseDescriptor(descriptor string) (Definition, error) {
	fields := strings.SplitN(descriptor, ":", 3)
	def := Definition{Type: Type(strings.ToLower(strings.TrimSpace(fields[0])))}
	if len(fields) > 1 {
		def.Name = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		def.Scheme = strings.TrimSpace(fields[2])
	}

	switch def.Type {
	case TypeAuthorizationHeader:
		if def.Name != "" {
			return Definition{}, fmt.Errorf("tokensource: %s takes no name", def.Type)
		}
	case TypeHeader:
	case TypeCookie, TypeQuery:
		if def.Scheme != "" {
			return Definition{}, fmt.Errorf("tokensource: %s takes no scheme", def.Type)
		}
	default:
		return Definition{}, fmt.Errorf("tokensource: unsupported token descriptor %q", descriptor)
	}
	if def.Type != TypeAuthorizationHeader && def.Name == "" {
		return Definition{}, fmt.Errorf("tokensource: %s token descriptor missing name", def.Type)
	}
	return def, nil
}
