package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dmesquita/openpull/pkg/report"
)

// runReport summarizes a previously collected transaction table.
func runReport(args []string) error {
	flags := flag.NewFlagSet("report", flag.ExitOnError)
	file := flags.String("file", "transactions.csv", "transaction table produced by 'openpull run'")
	if err := flags.Parse(args); err != nil {
		return err
	}

	r, err := report.FromCSV(*file)
	if err != nil {
		return err
	}

	fmt.Printf("%d transactions in %s\n\n", r.Count, *file)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CATEGORY\tTOTAL")
	for _, category := range r.Categories() {
		fmt.Fprintf(w, "%s\t%s\n", category, r.ByCategory[category].StringFixed(2))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "MONTH\tTOTAL")
	for _, month := range r.Months() {
		fmt.Fprintf(w, "%s\t%s\n", month, r.ByMonth[month].StringFixed(2))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "TOTAL\t%s\n", r.Total.StringFixed(2))
	return w.Flush()
}
