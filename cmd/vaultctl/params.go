package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"satvault/native/params"
)

func paramsUsage() string {
	return "Usage: vaultctl params <show|ratio|limit|fees|max-age|pauses> [flags]"
}

func runParamsCommand(client *apiClient, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, paramsUsage())
		return 1
	}
	switch args[0] {
	case "show":
		return runSimpleGet(client, "/v1/params", args[1:], stdout, stderr)
	case "ratio":
		return runParamsSingle(client, "ratio", "collateralization-ratio", "ratio", "collateralization ratio percentage", args[1:], stdout, stderr)
	case "limit":
		return runParamsSingle(client, "limit", "max-mint-limit", "limit", "maximum debt per vault", args[1:], stdout, stderr)
	case "max-age":
		return runParamsSingle(client, "max-age", "oracle-max-age", "blocks", "maximum price age in blocks", args[1:], stdout, stderr)
	case "fees":
		return runParamsFees(client, args[1:], stdout, stderr)
	case "pauses":
		return runParamsPauses(client, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown params subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, paramsUsage())
		return 1
	}
}

func parseUintFlag(name, raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("--%s is required", name)
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a non-negative integer", name)
	}
	return value, nil
}

func runParamsSingle(client *apiClient, name, route, field, help string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("params "+name, stderr)
	raw := fs.String("value", "", help)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	value, err := parseUintFlag("value", *raw)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	var out json.RawMessage
	if err := client.do("PUT", "/v1/params/"+route, map[string]uint64{field: value}, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runParamsFees(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("params fees", stderr)
	mintRaw := fs.String("mint-bps", "", "mint fee in basis points")
	redeemRaw := fs.String("redemption-bps", "", "redemption fee in basis points")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	mintBps, err := parseUintFlag("mint-bps", *mintRaw)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	redeemBps, err := parseUintFlag("redemption-bps", *redeemRaw)
	if err != nil {
		return printUsageError(stderr, err.Error())
	}
	if mintBps > params.MaxFeeBps || redeemBps > params.MaxFeeBps {
		return printUsageError(stderr, fmt.Sprintf("fees must be <= %d bps", params.MaxFeeBps))
	}
	body := map[string]uint64{"mint_fee_bps": mintBps, "redemption_fee_bps": redeemBps}
	var out json.RawMessage
	if err := client.do("PUT", "/v1/params/fees", body, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runParamsPauses(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("params pauses", stderr)
	create := fs.Bool("create", false, "pause vault creation")
	mint := fs.Bool("mint", false, "pause minting")
	redeem := fs.Bool("redeem", false, "pause redemption")
	liquidate := fs.Bool("liquidate", false, "pause liquidation")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	body := map[string]bool{"create": *create, "mint": *mint, "redeem": *redeem, "liquidate": *liquidate}
	var out json.RawMessage
	if err := client.do("PUT", "/v1/params/pauses", body, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}
