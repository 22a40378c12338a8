package csrf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaxBodyBytes bounds how much of a request body BodyLocator buffers.
const DefaultMaxBodyBytes int64 = 10 << 20

// multipart parts beyond this are spooled to disk by mime/multipart
const multipartMemory = 1 << 20

// Locator extracts the submitted plain token from a request.
type Locator interface {
	Locate(r *http.Request) (string, error)
}

// NewLocator returns the locator matching cfg.TokenLocation.
func NewLocator(cfg Config) Locator {
	header := HeaderLocator{Name: cfg.HeaderName, Scheme: cfg.HeaderType}
	body := BodyLocator{Field: cfg.TokenKey}
	switch cfg.TokenLocation {
	case LocationBody:
		return body
	case LocationFlexible:
		return FlexibleLocator{Locators: []Locator{header, body}}
	default:
		return header
	}
}

// HeaderLocator reads the token from a request header, optionally prefixed by
// a scheme as in "Bearer <token>".
type HeaderLocator struct {
	Name   string
	Scheme string
}

func (l HeaderLocator) Locate(r *http.Request) (string, error) {
	name := l.Name
	if name == "" {
		name = DefaultHeaderName
	}
	values := r.Header.Values(name)
	if len(values) == 0 {
		return "", newError(ErrInvalidHeader, ErrHeaderMissing, "Bad headers. Expected %q in headers", name)
	}
	value := values[0]
	parts := strings.Fields(value)

	if l.Scheme == "" {
		// <HeaderName>: <Token>
		if len(parts) != 1 {
			return "", newError(ErrInvalidHeader, ErrHeaderMalformed, `Bad %s header. Expected value "<Token>"`, name)
		}
		return parts[0], nil
	}

	// <HeaderName>: <HeaderType> <Token>
	if len(parts) != 2 || parts[0] != l.Scheme || value != parts[0]+" "+parts[1] {
		return "", newError(ErrInvalidHeader, ErrHeaderMalformed, `Bad %s header. Expected value "%s <Token>"`, name, l.Scheme)
	}
	return parts[1], nil
}

// BodyLocator reads the token from a JSON, urlencoded or multipart body field.
// The body is restored after inspection so later handlers can read it again.
type BodyLocator struct {
	Field    string
	MaxBytes int64 // defaults to DefaultMaxBodyBytes
}

func (l BodyLocator) Locate(r *http.Request) (string, error) {
	field := l.Field
	if field == "" {
		field = DefaultTokenKey
	}

	// a framework may have parsed the form already, leaving the body drained
	if r.MultipartForm != nil {
		return fromMultipart(r.MultipartForm, field)
	}
	if r.PostForm != nil {
		if v := r.PostForm.Get(field); v != "" {
			return v, nil
		}
	}

	body, err := l.buffer(r)
	if err != nil {
		return "", err
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return fromJSON(body, field)
	case "application/x-www-form-urlencoded":
		return fromURLEncoded(body, field)
	case "multipart/form-data":
		form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(multipartMemory)
		if err != nil {
			return "", newError(ErrMissingToken, ErrTokenMissing, "The form body could not be parsed.")
		}
		defer form.RemoveAll()
		return fromMultipart(form, field)
	default:
		if tok, err := fromJSON(body, field); err == nil {
			return tok, nil
		}
		return fromURLEncoded(body, field)
	}
}

func (l BodyLocator) buffer(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("csrf: read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if int64(len(body)) > limit {
		return nil, &http.MaxBytesError{Limit: limit}
	}
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return body, nil
}

func fromJSON(body []byte, field string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", bodyTokenMissing(field)
	}
	s, ok := doc[field].(string)
	if !ok || s == "" {
		return "", bodyTokenMissing(field)
	}
	return s, nil
}

func fromURLEncoded(body []byte, field string) (string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", bodyTokenMissing(field)
	}
	if v := values.Get(field); v != "" {
		return v, nil
	}
	return "", bodyTokenMissing(field)
}

func fromMultipart(form *multipart.Form, field string) (string, error) {
	if vs := form.Value[field]; len(vs) > 0 && vs[0] != "" {
		return vs[0], nil
	}
	if len(form.File[field]) > 0 {
		return "", newError(ErrMissingToken, ErrTokenMissing, "Form data must be of type string")
	}
	return "", bodyTokenMissing(field)
}

func bodyTokenMissing(field string) *Error {
	return newError(ErrMissingToken, ErrTokenMissing, "Missing %q in request body.", field)
}

// FlexibleLocator tries each locator in order and returns the first token
// found. Carrier errors are skipped; other errors (I/O) stop the search.
type FlexibleLocator struct {
	Locators []Locator
}

func (l FlexibleLocator) Locate(r *http.Request) (string, error) {
	var tried []error
	for _, loc := range l.Locators {
		tok, err := loc.Locate(r)
		if err == nil && tok != "" {
			return tok, nil
		}
		if err != nil {
			if !isCSRFError(err) {
				return "", err
			}
			tried = append(tried, err)
		}
	}
	e := newError(ErrMissingToken, ErrTokenMissing, "Token must be provided.")
	e.attempts = tried
	return "", e
}
