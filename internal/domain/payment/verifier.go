package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrVerificationFailed is returned when a payment assertion is incomplete or
// its signature does not match the one recomputed with the shared secret.
var ErrVerificationFailed = errors.New("payment verification failed")

// Assertion is the client-relayed proof that the gateway captured a payment.
type Assertion struct {
	// OrderID is the gateway-side order the payment was made against.
	OrderID string
	// PaymentID is the gateway-side payment event.
	PaymentID string
	// Signature is HMAC-SHA256(OrderID + "|" + PaymentID) produced by the
	// gateway, hex encoded (base64 is also accepted).
	Signature string
}

// Verifier checks payment assertions against the gateway shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier keyed with the gateway shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex encoded signature the gateway would produce for the
// given order and payment ids.
func (v *Verifier) Sign(orderID, paymentID string) string {
	return hex.EncodeToString(v.mac(orderID, paymentID))
}

// Verify recomputes the signature of a and compares it in constant time.
// Incomplete assertions are rejected before any MAC is computed.
func (v *Verifier) Verify(a Assertion) error {
	if a.OrderID == "" || a.PaymentID == "" || a.Signature == "" {
		return ErrVerificationFailed
	}

	expected := v.mac(a.OrderID, a.PaymentID)
	got, ok := decodeSignature(a.Signature, len(expected))
	if !ok {
		return ErrVerificationFailed
	}
	if !hmac.Equal(expected, got) {
		return ErrVerificationFailed
	}
	return nil
}

func (v *Verifier) mac(orderID, paymentID string) []byte {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(orderID))
	h.Write([]byte{'|'})
	h.Write([]byte(paymentID))
	return h.Sum(nil)
}

// decodeSignature decodes s in whichever textual encoding it arrived in.
// Hex is tried first since that is what the gateway emits.
func decodeSignature(s string, size int) ([]byte, bool) {
	if len(s) == hex.EncodedLen(size) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, true
		}
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if len(s) != enc.EncodedLen(size) {
			continue
		}
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
