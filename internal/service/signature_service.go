package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSignatureService signs outbound notification payloads with HMAC-SHA256
// so receivers can verify origin and integrity.
type HMACSignatureService struct{}

// NewSignatureService creates the signature service.
func NewSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the hex-encoded HMAC-SHA256 of payload under secretKey.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hmac.Equal(mac.Sum(nil), expected)
}
