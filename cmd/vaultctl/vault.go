package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"satvault/crypto"
)

func vaultUsage() string {
	return "Usage: vaultctl vault <create|list|get|position|history|mint|redeem|liquidate> [flags]"
}

func runVaultCommand(client *apiClient, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, vaultUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runVaultCreate(client, args[1:], stdout, stderr)
	case "list":
		return runVaultList(client, args[1:], stdout, stderr)
	case "get":
		return runVaultRead(client, "get", "", args[1:], stdout, stderr)
	case "position":
		return runVaultRead(client, "position", "/position", args[1:], stdout, stderr)
	case "history":
		return runVaultHistory(client, args[1:], stdout, stderr)
	case "mint":
		return runVaultAdjust(client, "mint", args[1:], stdout, stderr)
	case "redeem":
		return runVaultAdjust(client, "redeem", args[1:], stdout, stderr)
	case "liquidate":
		return runVaultLiquidate(client, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown vault subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, vaultUsage())
		return 1
	}
}

type vaultRef struct {
	owner string
	id    string
}

func (v *vaultRef) register(fs *flag.FlagSet) {
	fs.StringVar(&v.owner, "owner", "", "vault owner address (defaults to the profile caller)")
	fs.StringVar(&v.id, "id", "", "vault id")
}

// path validates the reference and renders /v1/vaults/{owner}/{id}.
func (v vaultRef) path(client *apiClient) (string, error) {
	owner, err := resolveOwner(client, v.owner)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v.id) == "" {
		return "", fmt.Errorf("--id is required")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(v.id), 10, 64)
	if err != nil {
		return "", fmt.Errorf("--id must be a non-negative integer")
	}
	return fmt.Sprintf("/v1/vaults/%s/%d", owner, id), nil
}

func resolveOwner(client *apiClient, raw string) (string, error) {
	owner := strings.TrimSpace(raw)
	if owner == "" {
		owner = client.caller
	}
	if owner == "" {
		return "", fmt.Errorf("--owner is required")
	}
	if _, err := crypto.DecodeAddress(owner); err != nil {
		return "", fmt.Errorf("--owner: %v", err)
	}
	return owner, nil
}

func parseAmount(name, raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("--%s is required", name)
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("--%s must be a positive integer", name)
	}
	return value, nil
}

func runVaultCreate(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault create", stderr)
	collateral := fs.String("collateral", "", "collateral to lock in satoshis")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() > 0 {
		return printUsageError(stderr, "unexpected positional arguments")
	}
	amount, err := parseAmount("collateral", *collateral)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("POST", "/v1/vaults", map[string]uint64{"collateral": amount}, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runVaultList(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault list", stderr)
	ownerFlag := fs.String("owner", "", "owner address (defaults to the profile caller)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	owner, err := resolveOwner(client, *ownerFlag)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("GET", "/v1/vaults/"+owner, nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runVaultRead(client *apiClient, name, suffix string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault "+name, stderr)
	var ref vaultRef
	ref.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path, err := ref.path(client)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("GET", path+suffix, nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runVaultHistory(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault history", stderr)
	var ref vaultRef
	ref.register(fs)
	limit := fs.Int("limit", 0, "maximum number of events (server default when zero)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path, err := ref.path(client)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	if *limit < 0 {
		return printUsageError(stderr, "--limit must not be negative")
	}
	path += "/history"
	if *limit > 0 {
		path += "?" + url.Values{"limit": []string{strconv.Itoa(*limit)}}.Encode()
	}
	var out json.RawMessage
	if err := client.do("GET", path, nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runVaultAdjust(client *apiClient, action string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault "+action, stderr)
	var ref vaultRef
	ref.register(fs)
	amountFlag := fs.String("amount", "", "amount of minted units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	path, err := ref.path(client)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	amount, err := parseAmount("amount", *amountFlag)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("POST", path+"/"+action, map[string]uint64{"amount": amount}, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runVaultLiquidate(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("vault liquidate", stderr)
	var ref vaultRef
	ref.register(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(ref.owner) == "" {
		return printUsageError(stderr, "--owner is required")
	}
	path, err := ref.path(client)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("POST", path+"/liquidate", nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}
