package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// DefaultSignatureTolerance bounds acceptable clock skew between the
// webhook sender and this service.
const DefaultSignatureTolerance = 300 * time.Second

// SignatureError is the single failure kind for webhook verification.
// The reason is human-readable for logs; callers get no machine-readable
// distinction between bad, stale, and replayed signatures.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Reason
}

// Sign computes the hex HMAC-SHA256 of timestamp|nonce|payload under the
// shared secret. The webhook sender uses the same construction.
func Sign(secret, payload []byte, timestamp int64, nonce string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("|"))
	mac.Write([]byte(nonce))
	mac.Write([]byte("|"))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HMACVerifier validates signatures produced with a shared secret,
// rejecting timestamps outside the tolerance window.
type HMACVerifier struct {
	Secret    []byte
	Tolerance time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewHMACVerifier constructs a verifier with the given tolerance;
// non-positive tolerance falls back to the default.
func NewHMACVerifier(secret []byte, tolerance time.Duration) *HMACVerifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	return &HMACVerifier{Secret: secret, Tolerance: tolerance, Now: time.Now}
}

// Verify checks freshness, then compares the supplied signature against
// the expected digest in constant time. Returns a *SignatureError on any
// failure.
func (v *HMACVerifier) Verify(payload []byte, signature string, timestamp int64, nonce string) error {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	// Compare plain seconds. Converting an attacker-supplied skew to a
	// time.Duration can overflow int64 and wrap inside the tolerance.
	skew := now().Unix() - timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew < 0 || skew > int64(v.Tolerance.Seconds()) {
		return &SignatureError{Reason: fmt.Sprintf("timestamp outside %s tolerance", v.Tolerance)}
	}

	expected := Sign(v.Secret, payload, timestamp, nonce)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return &SignatureError{Reason: "signature mismatch"}
	}
	return nil
}
