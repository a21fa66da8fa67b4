package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func ciphers() map[string]PayloadCipher {
	return map[string]PayloadCipher{
		"cfb": CFBCipher{},
		"gcm": GCMCipher{},
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	plaintexts := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"one byte", []byte{0x42}},
		{"odd length", []byte("<Pid ts=\"2026-10-19T10:30:00\" ver=\"2.0\"/>")},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", make([]byte, 10001)},
	}

	label := LabelFromTimestamp(testTS)

	for cname, c := range ciphers() {
		for _, scope := range []TagScope{TagPlaintext, TagCiphertext} {
			for _, p := range plaintexts {
				t.Run(cname+"/"+scope.String()+"/"+p.name, func(t *testing.T) {
					key := testSessionKey(t)

					ciphertext, tag, err := Seal(c, p.data, key, label, scope)
					if err != nil {
						t.Fatalf("Seal() error = %v", err)
					}
					if len(tag) != TagSize {
						t.Errorf("tag length = %d, want %d", len(tag), TagSize)
					}

					got, err := Open(c, ciphertext, key, label, tag, scope)
					if err != nil {
						t.Fatalf("Open() error = %v", err)
					}
					if !bytes.Equal(got, p.data) {
						t.Error("decrypted data differs from plaintext")
					}
				})
			}
		}
	}
}

func TestCFBCipher_NoPadding(t *testing.T) {
	key := testSessionKey(t)
	label := LabelFromTimestamp(testTS)

	for _, n := range []int{0, 1, 15, 16, 17, 33} {
		ct, err := CFBCipher{}.Encrypt(make([]byte, n), key, label)
		if err != nil {
			t.Fatal(err)
		}
		if len(ct) != n {
			t.Errorf("ciphertext length = %d, want %d", len(ct), n)
		}
	}
}

func TestOpen_FlippedCiphertextByteFailsIntegrity(t *testing.T) {
	label := LabelFromTimestamp(testTS)
	plaintext := []byte("<Pid><Demo><Pi name=\"A Person\"/></Demo></Pid>")

	for cname, c := range ciphers() {
		for _, scope := range []TagScope{TagPlaintext, TagCiphertext} {
			t.Run(cname+"/"+scope.String(), func(t *testing.T) {
				key := testSessionKey(t)
				ciphertext, tag, err := Seal(c, plaintext, key, label, scope)
				if err != nil {
					t.Fatal(err)
				}

				for i := range ciphertext {
					mutated := bytes.Clone(ciphertext)
					mutated[i] ^= 0x01

					got, err := Open(c, mutated, key, label, tag, scope)
					if !errors.Is(err, ErrIntegrityCheckFailed) {
						t.Fatalf("byte %d: expected ErrIntegrityCheckFailed, got %v", i, err)
					}
					if got != nil {
						t.Fatalf("byte %d: plaintext returned on integrity failure", i)
					}
				}
			})
		}
	}
}

func TestOpen_TamperedTag(t *testing.T) {
	key := testSessionKey(t)
	label := LabelFromTimestamp(testTS)

	ciphertext, tag, err := Seal(CFBCipher{}, []byte("payload"), key, label, TagPlaintext)
	if err != nil {
		t.Fatal(err)
	}
	tag[0] ^= 0xff

	if _, err := Open(CFBCipher{}, ciphertext, key, label, tag, TagPlaintext); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("expected ErrIntegrityCheckFailed, got %v", err)
	}
}

func TestOpen_NilTagSkipsHMAC(t *testing.T) {
	key := testSessionKey(t)
	label := LabelFromTimestamp(testTS)

	ciphertext, _, err := Seal(CFBCipher{}, []byte("payload"), key, label, TagPlaintext)
	if err != nil {
		t.Fatal(err)
	}

	got, err := Open(CFBCipher{}, ciphertext, key, label, nil, TagPlaintext)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want payload", got)
	}
}

func TestPayloadCipher_InvalidParameters(t *testing.T) {
	label := LabelFromTimestamp(testTS)

	for cname, c := range ciphers() {
		t.Run(cname, func(t *testing.T) {
			if _, err := c.Encrypt([]byte("x"), make([]byte, 16), label); !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
			if _, err := c.Encrypt([]byte("x"), testSessionKey(t), []byte("short")); !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("expected ErrInvalidLabel, got %v", err)
			}
			if _, err := c.Decrypt([]byte("x"), testSessionKey(t), nil); !errors.Is(err, ErrInvalidLabel) {
				t.Errorf("expected ErrInvalidLabel, got %v", err)
			}
		})
	}
}

func TestGCMCipher_WrongLabel(t *testing.T) {
	key := testSessionKey(t)
	ct, err := GCMCipher{}.Encrypt([]byte("data"), key, []byte("2026-10-19T10:30:00"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (GCMCipher{}).Decrypt(ct, key, []byte("2026-10-19T10:30:01")); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("expected ErrIntegrityCheckFailed, got %v", err)
	}
}

func TestVerifyTag(t *testing.T) {
	key := testSessionKey(t)
	data := []byte("canonical")
	tag := ComputeTag(key, data)

	if err := VerifyTag(key, data, tag); err != nil {
		t.Errorf("VerifyTag() error = %v", err)
	}
	if err := VerifyTag(key, []byte("canonicaL"), tag); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("expected ErrIntegrityCheckFailed, got %v", err)
	}
	if err := VerifyTag(testSessionKey(t), data, tag); !errors.Is(err, ErrIntegrityCheckFailed) {
		t.Errorf("expected ErrIntegrityCheckFailed for other key, got %v", err)
	}
}
