package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Canonical is the string an account signs for an execute request.
func Canonical(p ExecuteParams) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(p.TS, 10))
	b.WriteByte('\n')
	b.WriteString(strings.TrimSpace(p.Nonce))
	b.WriteByte('\n')
	b.WriteString(p.Account.Hex())
	b.WriteByte('\n')
	b.WriteString(p.ChainID.Hex())
	for _, c := range p.Calls {
		b.WriteByte('\n')
		b.WriteString(c.To.Hex())
		b.WriteByte('|')
		b.WriteString(c.Selector.Hex())
		for i, d := range c.Calldata {
			if i == 0 {
				b.WriteByte('|')
			} else {
				b.WriteByte(',')
			}
			b.WriteString(d.Hex())
		}
	}
	return b.String()
}

func SignHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC compares in constant time; signature case is ignored.
func VerifyHMAC(secret []byte, canonical, signature string) bool {
	want := SignHMAC(secret, canonical)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
