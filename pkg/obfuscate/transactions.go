package obfuscate

import "github.com/dmesquita/openpull/pkg/api"

// Transactions masks the sensitive fields of every transaction in place
// and returns the slice: ids, card numbers, merchant category codes and
// tax identifiers. Amounts, dates and descriptions are left alone.
func Transactions(transactions []api.Transaction) []api.Transaction {
	for i := range transactions {
		Transaction(&transactions[i])
	}
	return transactions
}

// Transaction masks one transaction's sensitive fields in place.
func Transaction(t *api.Transaction) {
	t.ID = String(t.ID)
	t.AccountID = String(t.AccountID)

	if cc := t.CreditCardMetadata; cc != nil {
		cc.CardNumber = String(cc.CardNumber)
		if cc.PayeeMCC != nil {
			masked := Int64(*cc.PayeeMCC)
			cc.PayeeMCC = &masked
		}
	}

	if m := t.Merchant; m != nil {
		m.CNAE = String(m.CNAE)
		m.CNPJ = String(m.CNPJ)
	}
}
