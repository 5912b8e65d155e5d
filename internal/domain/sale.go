package domain

// SaleConfig is the singleton configuration of a sale deployment.
// Stored at the program-derived address for seed "ico".
type SaleConfig struct {
	Price    uint64  // lamports per 1_000_000 token base units
	Treasury Address // receives purchase proceeds
	Owner    Address // may change price, treasury and owner
}

// BuyerRecord accumulates the tokens a buyer received through the sale.
// Stored at the program-derived address for seeds ("user_account", buyer).
type BuyerRecord struct {
	Buyer               Address
	TotalTokensReceived uint64
}

// Account is a ledger record: lamport balance plus program-owned data.
type Account struct {
	Address  Address
	Owner    Address // program that may write Data
	Lamports uint64
	Data     []byte
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return &c
}
