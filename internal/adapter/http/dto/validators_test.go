package dto

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := AdjustmentRequest{
		Direction: "  credit ",
		Reason:    "  opening balance  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "credit", req.Direction)
	assert.Equal(t, "opening balance", req.Reason)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := AdjustmentRequest{Reason: "duplicate shift <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	proof := "  uploads/proof <1>.pdf  "
	req := AdjustmentRequest{ProofFile: &proof}
	SanitizeStruct(&req)

	assert.Equal(t, "uploads/proof &lt;1&gt;.pdf", *req.ProofFile)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := AdjustmentRequest{Reason: "x"}
	SanitizeStruct(&req)
	assert.Nil(t, req.ProofFile)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"ref-001",
		"REF_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"ref 001",     // space
		"ref<001>",    // angle brackets
		"ref;DROP",    // semicolon
		"",            // empty
		"hello world", // space
		"ref\n001",    // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		raw  string
		ok   bool
		want string
	}{
		{"100", true, "100"},
		{"40.5", true, "40.5"},
		{" 0.01 ", true, "0.01"},
		{"0", false, ""},
		{"-5.00", false, ""},
		{"1.001", false, ""},
		{"99999999999999999.99", true, "99999999999999999.99"},
		{"100000000000000000.00", false, ""},
		{"1e30", false, ""},
		{"abc", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, ok := ParseMoney(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, d.String())
			}
		})
	}
}

func TestValidIdempotencyKey(t *testing.T) {
	assert.True(t, ValidIdempotencyKey("adj-2026-10-18.1"))
	assert.False(t, ValidIdempotencyKey("has space"))
	assert.False(t, ValidIdempotencyKey(string(make([]byte, 129))))
}

func TestAdjustmentRequest_Binding(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"numeric amount", `{"direction":"credit","amount":100,"reason":"top up"}`, true},
		{"string amount", `{"direction":"debit","amount":"40.00","reason":"correction"}`, true},
		{"with category", `{"direction":"credit","amount":"5","reason":"r","category":"refund"}`, true},
		{"three decimals", `{"direction":"credit","amount":"1.005","reason":"r"}`, false},
		{"negative", `{"direction":"credit","amount":-1,"reason":"r"}`, false},
		{"bad direction", `{"direction":"sideways","amount":1,"reason":"r"}`, false},
		{"missing reason", `{"direction":"credit","amount":1}`, false},
		{"unknown category", `{"direction":"credit","amount":1,"reason":"r","category":"bonus"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req AdjustmentRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			err := binding.Validator.ValidateStruct(&req)
			assert.Equal(t, tt.valid, err == nil, "err: %v", err)
		})
	}
}

func TestSettleInvoiceRequest_Binding(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&SettleInvoiceRequest{}))
	assert.NoError(t, binding.Validator.ValidateStruct(&SettleInvoiceRequest{PaymentMethod: "wallet"}))
	assert.Error(t, binding.Validator.ValidateStruct(&SettleInvoiceRequest{PaymentMethod: "card; DROP"}))
}
