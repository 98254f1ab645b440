package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"satvault/crypto"
)

var oracleNow = time.Now

func oracleUsage() string {
	return "Usage: vaultctl oracle <authorize|revoke|submit|latest> [flags]"
}

func runOracleCommand(client *apiClient, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, oracleUsage())
		return 1
	}
	switch args[0] {
	case "authorize":
		return runOracleMembership(client, true, args[1:], stdout, stderr)
	case "revoke":
		return runOracleMembership(client, false, args[1:], stdout, stderr)
	case "submit":
		return runOracleSubmit(client, args[1:], stdout, stderr)
	case "latest":
		return runSimpleGet(client, "/v1/prices/latest", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown oracle subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, oracleUsage())
		return 1
	}
}

func runOracleMembership(client *apiClient, authorize bool, args []string, stdout, stderr io.Writer) int {
	name := "oracle revoke"
	if authorize {
		name = "oracle authorize"
	}
	fs := newFlagSet(name, stderr)
	candidate := fs.String("address", "", "oracle address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	addr := strings.TrimSpace(*candidate)
	if addr == "" {
		return printUsageError(stderr, "--address is required")
	}
	if _, err := crypto.DecodeAddress(addr); err != nil {
		return printUsageError(stderr, fmt.Sprintf("--address: %v", err))
	}
	var (
		out json.RawMessage
		err error
	)
	if authorize {
		err = client.do("POST", "/v1/oracles", map[string]string{"candidate": addr}, &out)
	} else {
		err = client.do("DELETE", "/v1/oracles/"+addr, nil, &out)
	}
	if err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runOracleSubmit(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("oracle submit", stderr)
	priceFlag := fs.String("price", "", "price per satoshi in minted units")
	timestampFlag := fs.String("timestamp", "", "observation timestamp (defaults to the current unix time)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	price, err := parseAmount("price", *priceFlag)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	timestamp := uint64(oracleNow().Unix())
	if raw := strings.TrimSpace(*timestampFlag); raw != "" {
		timestamp, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return printUsageError(stderr, "--timestamp must be a non-negative integer")
		}
	}
	body := map[string]uint64{"price": price, "timestamp": timestamp}
	if err := client.do("POST", "/v1/prices", body, nil); err != nil {
		return printError(stderr, err)
	}
	fmt.Fprintf(stdout, "Submitted price %d at timestamp %d\n", price, timestamp)
	return 0
}
