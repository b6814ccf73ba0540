package obfuscate

import (
	"testing"

	"github.com/dmesquita/openpull/pkg/api"
)

func TestTransactionMasksSensitiveFields(t *testing.T) {
	mcc := int64(5412)
	tx := api.Transaction{
		ID:          "a1b2c3d4-e5f6",
		AccountID:   "acc-99",
		Description: "PADARIA DO ZE",
		Amount:      -34.9,
		CreditCardMetadata: &api.CreditCardMetadata{
			CardNumber: "1234",
			PayeeMCC:   &mcc,
		},
		Merchant: &api.Merchant{
			Name: "Padaria do Ze",
			CNPJ: "12.345.678/0001-90",
			CNAE: "4721102",
		},
	}

	Transaction(&tx)

	if tx.ID != "00000000-0000" {
		t.Errorf("id: got %q", tx.ID)
	}
	if tx.AccountID != "000-00" {
		t.Errorf("account id: got %q", tx.AccountID)
	}
	if tx.CreditCardMetadata.CardNumber != "0000" {
		t.Errorf("card number: got %q", tx.CreditCardMetadata.CardNumber)
	}
	if *tx.CreditCardMetadata.PayeeMCC != 0 {
		t.Errorf("payee mcc: got %d", *tx.CreditCardMetadata.PayeeMCC)
	}
	if tx.Merchant.CNPJ != "00.000.000/0000-00" {
		t.Errorf("cnpj: got %q", tx.Merchant.CNPJ)
	}
	if tx.Merchant.CNAE != "0000000" {
		t.Errorf("cnae: got %q", tx.Merchant.CNAE)
	}

	// fields a human needs to read the report stay intact
	if tx.Description != "PADARIA DO ZE" {
		t.Errorf("description changed: %q", tx.Description)
	}
	if tx.Amount != -34.9 {
		t.Errorf("amount changed: %v", tx.Amount)
	}
	if tx.Merchant.Name != "Padaria do Ze" {
		t.Errorf("merchant name changed: %q", tx.Merchant.Name)
	}
}

func TestTransactionsHandlesMissingMetadata(t *testing.T) {
	transactions := []api.Transaction{
		{ID: "tx-1"},
		{ID: "tx-2", CreditCardMetadata: &api.CreditCardMetadata{}},
	}

	got := Transactions(transactions)

	if got[0].ID != "00-0" || got[1].ID != "00-0" {
		t.Errorf("ids: got %q, %q", got[0].ID, got[1].ID)
	}
}
