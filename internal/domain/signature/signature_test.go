package signature

import (
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("shared-secret")
	body := []byte(`{"customerName":"Ada"}`)

	sig := Sign(secret, "sub-1", body)
	if !strings.HasPrefix(sig, Prefix) {
		t.Fatalf("expected %q prefix, got %s", Prefix, sig)
	}
	if err := Verify(secret, "sub-1", body, sig); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	secret := []byte("shared-secret")
	body := []byte(`{"customerName":"Ada"}`)
	sig := Sign(secret, "sub-1", body)

	mutatedBody := []byte(`{"customerName":"Adb"}`)
	if err := Verify(secret, "sub-1", mutatedBody, sig); err == nil {
		t.Fatal("expected mutated body to fail")
	}
	if err := Verify(secret, "sub-2", body, sig); err == nil {
		t.Fatal("expected mutated submission id to fail")
	}
	mutatedSig := sig[:len(sig)-1]
	if sig[len(sig)-1] == 'a' {
		mutatedSig += "b"
	} else {
		mutatedSig += "a"
	}
	if err := Verify(secret, "sub-1", body, mutatedSig); err == nil {
		t.Fatal("expected mutated signature to fail")
	}
	if err := Verify([]byte("other-secret"), "sub-1", body, sig); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestVerifyFailsClosedOnMalformedValues(t *testing.T) {
	secret := []byte("shared-secret")
	body := []byte("{}")
	valid := Sign(secret, "sub-1", body)
	digest := strings.TrimPrefix(valid, Prefix)

	cases := map[string]string{
		"empty":        "",
		"no prefix":    digest,
		"wrong prefix": "sha1=" + digest,
		"short":        Prefix + digest[:10],
		"long":         Prefix + digest + "00",
		"not hex":      Prefix + strings.Repeat("zz", 32),
	}
	for name, provided := range cases {
		if err := Verify(secret, "sub-1", body, provided); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}
