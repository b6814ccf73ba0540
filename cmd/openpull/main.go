package main

import (
	"fmt"
	"os"

	"github.com/dmesquita/openpull/pkg/logging"
)

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	cmd := "help"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	args := os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runCollect(logger)
	case "connectors":
		err = runConnectors(logger, args)
	case "status":
		err = runStatus(logger)
	case "report":
		err = runReport(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: openpull <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run         connect an institution and collect its transactions")
	fmt.Println("  connectors  list the available institution connectors")
	fmt.Println("  status      check configuration and API connectivity")
	fmt.Println("  report      summarize a collected transaction table")
	fmt.Println("  help        show this message")
	fmt.Println()
	fmt.Println("Configuration is read from environment variables; a .env file")
	fmt.Println("in the working directory is honored. See README for the list.")
}
