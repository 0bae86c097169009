package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "mailer-secret"
	payload := `{"kind":"worker_paid","amount":"60.00"}`

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	sig := svc.Sign("correct-key", "original payload")

	assert.False(t, svc.Verify("wrong-key", "original payload", sig))
	assert.False(t, svc.Verify("correct-key", "tampered payload", sig))
	assert.False(t, svc.Verify("correct-key", "original payload", "invalidsignature"))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}
