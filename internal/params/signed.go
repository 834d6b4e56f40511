package params

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/DMarby/picsum-editor/internal/hmac"
)

// SignatureParam is the query parameter holding the signature of a signed url
const SignatureParam = "hmac"

// Sign returns path and query with a signature over both appended
func Sign(h *hmac.HMAC, path string, query url.Values) (string, error) {
	signature, err := h.Create(path + BuildQuery(query))
	if err != nil {
		return "", err
	}

	signed := url.Values{SignatureParam: {signature}}
	for key, values := range query {
		signed[key] = values
	}

	return path + BuildQuery(signed), nil
}

// Verify reports whether the path and query of a request carry a valid signature
func Verify(h *hmac.HMAC, r *http.Request) (bool, error) {
	query := r.URL.Query()

	signature := query.Get(SignatureParam)
	if signature == "" {
		return false, nil
	}
	query.Del(SignatureParam)

	return h.Validate(r.URL.Path+BuildQuery(query), signature)
}

// BuildQuery encodes values sorted by key, so signatures do not depend on parameter order.
// Parameters with an empty value are encoded as "key" rather than "key=".
func BuildQuery(v url.Values) string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var buf strings.Builder
	for _, key := range keys {
		if buf.Len() == 0 {
			buf.WriteByte('?')
		} else {
			buf.WriteByte('&')
		}

		buf.WriteString(url.QueryEscape(key))
		if value := v.Get(key); value != "" {
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(value))
		}
	}

	return buf.String()
}
