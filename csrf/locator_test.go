package csrf

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderLocator(t *testing.T) {
	cases := []struct {
		name    string
		scheme  string
		values  []string
		want    string
		wantErr error
		message string
	}{
		{name: "bare token", values: []string{"tok"}, want: "tok"},
		{name: "surrounding spaces", values: []string{"  tok "}, want: "tok"},
		{name: "absent", wantErr: ErrHeaderMissing, message: `Bad headers. Expected "X-CSRF-Token" in headers`},
		{name: "two parts", values: []string{"a b"}, wantErr: ErrHeaderMalformed, message: `Bad X-CSRF-Token header. Expected value "<Token>"`},
		{name: "empty value", values: []string{""}, wantErr: ErrHeaderMalformed},
		{name: "first value wins", values: []string{"first", "second"}, want: "first"},
		{name: "scheme", scheme: "Bearer", values: []string{"Bearer tok"}, want: "tok"},
		{name: "wrong scheme", scheme: "Bearer", values: []string{"Basic tok"}, wantErr: ErrHeaderMalformed, message: `Bad X-CSRF-Token header. Expected value "Bearer <Token>"`},
		{name: "scheme only", scheme: "Bearer", values: []string{"Bearer"}, wantErr: ErrHeaderMalformed},
		{name: "token only", scheme: "Bearer", values: []string{"tok"}, wantErr: ErrHeaderMalformed},
		{name: "double space", scheme: "Bearer", values: []string{"Bearer  tok"}, wantErr: ErrHeaderMalformed},
		{name: "three parts", scheme: "Bearer", values: []string{"Bearer tok extra"}, wantErr: ErrHeaderMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for _, v := range tc.values {
				r.Header.Add(DefaultHeaderName, v)
			}
			got, err := HeaderLocator{Name: DefaultHeaderName, Scheme: tc.scheme}.Locate(r)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, ErrInvalidHeader)
				require.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(err))
				if tc.message != "" {
					assert.Equal(t, tc.message, err.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHeaderLocatorIsCaseInsensitive(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("x-csrf-token", "tok")
	got, err := HeaderLocator{Name: "X-Csrf-Token"}.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestBodyLocatorJSON(t *testing.T) {
	loc := BodyLocator{Field: "csrf-token"}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf-token":"tok","amount":10}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	got, err := loc.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	for _, body := range []string{`{"other":"x"}`, `{"csrf-token":12}`, `{"csrf-token":""}`, `[1,2]`, `not json`, ``} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		_, err := loc.Locate(r)
		require.ErrorIs(t, err, ErrMissingToken, body)
		assert.Equal(t, `Missing "csrf-token" in request body.`, err.Error())
		assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	}
}

func TestBodyLocatorURLEncoded(t *testing.T) {
	form := url.Values{"csrf-token": {"tok"}, "note": {"hi"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := BodyLocator{Field: "csrf-token"}.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	// the body stays readable for the handler
	rest, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Equal(t, form.Encode(), string(rest))
	require.NotNil(t, r.GetBody)
	again, err := r.GetBody()
	require.NoError(t, err)
	b, _ := io.ReadAll(again)
	assert.Equal(t, form.Encode(), string(b))
}

func TestBodyLocatorUnknownContentType(t *testing.T) {
	loc := BodyLocator{Field: "csrf-token"}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf-token":"from-json"}`))
	got, err := loc.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "from-json", got)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`csrf-token=from-form`))
	r.Header.Set("Content-Type", "text/plain")
	got, err = loc.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "from-form", got)
}

func multipartRequest(t *testing.T, build func(w *multipart.Writer)) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	build(mw)
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestBodyLocatorMultipart(t *testing.T) {
	r := multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("csrf-token", "tok"))
		fw, err := w.CreateFormFile("upload", "a.txt")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("content"))
	})
	got, err := BodyLocator{Field: "csrf-token"}.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	r = multipartRequest(t, func(w *multipart.Writer) {
		fw, err := w.CreateFormFile("csrf-token", "token.txt")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("tok"))
	})
	_, err = BodyLocator{Field: "csrf-token"}.Locate(r)
	require.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, "Form data must be of type string", err.Error())

	r = multipartRequest(t, func(w *multipart.Writer) {
		require.NoError(t, w.WriteField("other", "x"))
	})
	_, err = BodyLocator{Field: "csrf-token"}.Locate(r)
	assert.ErrorIs(t, err, ErrTokenMissing)
}

func TestBodyLocatorUsesParsedForm(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("csrf-token=tok"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, r.ParseForm())

	got, err := BodyLocator{Field: "csrf-token"}.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
}

func TestBodyLocatorLimit(t *testing.T) {
	body := `{"csrf-token":"tok","pad":"` + strings.Repeat("x", 64) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	_, err := BodyLocator{Field: "csrf-token", MaxBytes: 16}.Locate(r)
	var mbe *http.MaxBytesError
	require.ErrorAs(t, err, &mbe)
	assert.Equal(t, int64(16), mbe.Limit)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusCode(err))
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestFlexibleLocator(t *testing.T) {
	loc := NewLocator(Config{TokenLocation: LocationFlexible, HeaderName: DefaultHeaderName, TokenKey: "csrf-token"})

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf-token":"from-body"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(DefaultHeaderName, "from-header")
	got, err := loc.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "from-header", got)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"csrf-token":"from-body"}`))
	r.Header.Set("Content-Type", "application/json")
	got, err = loc.Locate(r)
	require.NoError(t, err)
	assert.Equal(t, "from-body", got)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	_, err = loc.Locate(r)
	require.ErrorIs(t, err, ErrMissingToken)
	assert.NotErrorIs(t, err, ErrInvalidHeader)
	assert.Equal(t, "Token must be provided.", err.Error())

	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Attempts(), 2)
	assert.ErrorIs(t, ce.Attempts()[0], ErrHeaderMissing)
	assert.ErrorIs(t, ce.Attempts()[1], ErrTokenMissing)
}

func TestFlexibleLocatorStopsOnIOError(t *testing.T) {
	loc := FlexibleLocator{Locators: []Locator{HeaderLocator{}, BodyLocator{}}}

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Body = failingBody{}
	_, err := loc.Locate(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))

	var ce *Error
	assert.False(t, errors.As(err, &ce))
}

func TestNewLocator(t *testing.T) {
	assert.IsType(t, HeaderLocator{}, NewLocator(DefaultConfig()))
	assert.IsType(t, BodyLocator{}, NewLocator(Config{TokenLocation: LocationBody, TokenKey: "k"}))
	assert.IsType(t, FlexibleLocator{}, NewLocator(Config{TokenLocation: LocationFlexible}))
}
