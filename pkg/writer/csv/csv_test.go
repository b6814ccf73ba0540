package csv

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmesquita/openpull/pkg/api"
)

func sampleTransactions() []api.Transaction {
	mcc := int64(5412)
	return []api.Transaction{
		{
			ID:           "a1b2",
			AccountID:    "acc9",
			Date:         "2024-03-15T03:00:00.000Z",
			Description:  "PADARIA DO ZE",
			Amount:       -34.9,
			CurrencyCode: "BRL",
			Category:     "Groceries",
			Type:         "DEBIT",
			Status:       "POSTED",
			CreditCardMetadata: &api.CreditCardMetadata{
				CardNumber:        "1234",
				InstallmentNumber: 2,
				TotalInstallments: 10,
				PayeeMCC:          &mcc,
			},
			Merchant: &api.Merchant{Name: "Padaria do Ze", CNPJ: "12.345.678/0001-90"},
		},
		{
			ID:          "ff00",
			AccountID:   "acc9",
			Date:        "2024-03-16T03:00:00.000Z",
			Description: "UBER TRIP",
			Amount:      -18.5,
			Type:        "DEBIT",
			Status:      "POSTED",
		},
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink := New(Config{FilePath: path}, nil)

	if err := sink.Write(context.Background(), sampleTransactions()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("reading produced file: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want header + 2 records", len(rows))
	}
	if rows[0][0] != "id" || rows[0][4] != "amount" {
		t.Errorf("header: got %v", rows[0])
	}

	first := rows[1]
	if first[0] != "0000" {
		t.Errorf("id should be obfuscated: got %q", first[0])
	}
	if first[3] != "PADARIA DO ZE" {
		t.Errorf("description: got %q", first[3])
	}
	if first[4] != "-34.90" {
		t.Errorf("amount: got %q", first[4])
	}
	if first[9] != "0000" {
		t.Errorf("card number should be obfuscated: got %q", first[9])
	}
	if first[10] != "2" || first[11] != "10" {
		t.Errorf("installments: got %q/%q", first[10], first[11])
	}
	if first[13] != "00.000.000/0000-00" {
		t.Errorf("cnpj should be obfuscated: got %q", first[13])
	}

	// transactions without card or merchant data produce empty columns
	second := rows[2]
	if second[9] != "" || second[12] != "" {
		t.Errorf("optional columns: got %q/%q, want empty", second[9], second[12])
	}
}

func TestWriteReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink := New(Config{FilePath: path}, nil)

	if err := sink.Write(context.Background(), sampleTransactions()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("rows after rewrite: got %d, want header only", len(rows))
	}
}

func TestWriteCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink := New(Config{FilePath: path}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sink.Write(ctx, sampleTransactions()); err == nil {
		t.Error("expected an error from a canceled context")
	}
}
