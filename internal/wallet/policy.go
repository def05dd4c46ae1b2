package wallet

// Policy decides whether a proposed post-transaction balance is acceptable for
// a wallet. New wallet kinds plug in a new Policy; the transaction processor
// never branches on kind itself.
type Policy interface {
	Validate(w Wallet, proposedBalance int64) error
}

// PolicyFor returns the balance policy for a wallet kind.
func PolicyFor(kind Kind) Policy {
	if kind == KindPartnerCredit {
		return creditLinePolicy{}
	}
	return nonNegativePolicy{}
}

// nonNegativePolicy applies to guide, customer and corporate deposit wallets:
// the balance must never go below zero.
type nonNegativePolicy struct{}

func (nonNegativePolicy) Validate(_ Wallet, proposedBalance int64) error {
	if proposedBalance < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// creditLinePolicy lets a partner wallet go negative down to its credit limit.
type creditLinePolicy struct{}

func (creditLinePolicy) Validate(w Wallet, proposedBalance int64) error {
	if proposedBalance < -w.CreditLimit {
		return ErrCreditLimitExceeded
	}
	return nil
}
