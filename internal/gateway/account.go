package gateway

import (
	"fmt"
	"strings"

	"escaperoom.ai/internal/felt"
	"escaperoom.ai/internal/protocol"
)

// Account is the signing identity shared by every dispatch loop. It is never
// mutated after NewAccount.
type Account struct {
	Address felt.Felt
	ChainID felt.Felt

	secret []byte
}

func NewAccount(address, chainID felt.Felt, secret string) (Account, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Account{}, fmt.Errorf("empty account secret")
	}
	if address.IsZero() {
		return Account{}, fmt.Errorf("zero account address")
	}
	return Account{Address: address, ChainID: chainID, secret: []byte(secret)}, nil
}

// Sign fills p.Account, p.ChainID and p.Signature.
func (a Account) Sign(p *protocol.ExecuteParams) {
	p.Account = a.Address
	p.ChainID = a.ChainID
	p.Signature = protocol.SignHMAC(a.secret, protocol.Canonical(*p))
}
