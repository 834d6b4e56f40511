package hmac_test

import (
	"testing"

	"github.com/DMarby/picsum-editor/internal/hmac"
)

func TestHMAC(t *testing.T) {
	random, err := hmac.NewRandom()
	if err != nil {
		t.Fatal(err)
	}

	other, err := hmac.NewRandom()
	if err != nil {
		t.Fatal(err)
	}

	signer := &hmac.HMAC{Key: []byte("foobar")}

	signature, err := signer.Create("/blobs/abc")
	if err != nil {
		t.Fatal(err)
	}

	randomSignature, err := random.Create("/blobs/abc")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		Name      string
		HMAC      *hmac.HMAC
		Message   string
		Signature string
		Expected  bool
	}{
		{"matching signature", signer, "/blobs/abc", signature, true},
		{"different message", signer, "/blobs/def", signature, false},
		{"malformed signature", signer, "/blobs/abc", "not base64!", false},
		{"random key", random, "/blobs/abc", randomSignature, true},
		{"different random key", other, "/blobs/abc", randomSignature, false},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			matches, err := tc.HMAC.Validate(tc.Message, tc.Signature)
			if err != nil {
				t.Fatal(err)
			}

			if matches != tc.Expected {
				t.Errorf("expected %v, got %v", tc.Expected, matches)
			}
		})
	}
}

func TestEmptyKey(t *testing.T) {
	h := &hmac.HMAC{}

	if _, err := h.Create("message"); err == nil {
		t.Error("expected an error signing with an empty key")
	}

	if _, err := h.Validate("message", "signature"); err == nil {
		t.Error("expected an error validating with an empty key")
	}
}
