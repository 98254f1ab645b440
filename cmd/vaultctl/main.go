package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profilePath := fs.String("profile", "", "YAML profile with endpoint, token and caller (default ~/.satvault/profile.yaml)")
	endpoint := fs.String("endpoint", "", "vaultd base URL")
	token := fs.String("token", "", "bearer token")
	caller := fs.String("caller", "", "caller address sent as X-Caller when auth is disabled")
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	// Offline commands never touch the profile.
	switch rest[0] {
	case "keygen":
		return runKeygenCommand(rest[1:], stdout, stderr)
	case "token":
		return runTokenCommand(rest[1:], stdout, stderr)
	case "help":
		fmt.Fprintln(stdout, usage())
		return 0
	}

	path, explicit := *profilePath, *profilePath != ""
	if !explicit {
		path = defaultProfilePath()
	}
	p, err := loadProfile(path, explicit)
	if err != nil {
		return printError(stderr, err)
	}
	if *endpoint != "" {
		p.Endpoint = *endpoint
	}
	if *token != "" {
		p.Token = *token
	}
	if *caller != "" {
		p.Caller = *caller
	}
	client := newAPIClient(p)

	switch rest[0] {
	case "profile":
		return runProfileCommand(path, p, rest[1:], stdout, stderr)
	case "oracle":
		return runOracleCommand(client, rest[1:], stdout, stderr)
	case "vault":
		return runVaultCommand(client, rest[1:], stdout, stderr)
	case "params":
		return runParamsCommand(client, rest[1:], stdout, stderr)
	case "supply":
		return runSimpleGet(client, "/v1/supply", rest[1:], stdout, stderr)
	case "stats":
		return runSimpleGet(client, "/v1/stats", rest[1:], stdout, stderr)
	case "events":
		return runEventsCommand(client, rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: vaultctl [--profile file] [--endpoint url] [--token jwt] [--caller addr] <command>",
		"",
		"Commands:",
		"  oracle authorize|revoke|submit|latest   Manage oracles and prices",
		"  vault create|list|get|position|history|mint|redeem|liquidate",
		"  params show|ratio|limit|fees|max-age|pauses",
		"  supply                                  Show total minted supply",
		"  stats                                   Show ledger statistics",
		"  events                                  List recently indexed events",
		"  profile show|save                       Inspect or persist connection settings",
		"  keygen                                  Create an encrypted keystore",
		"  token                                   Issue a signed API token",
	}, "\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func printUsageError(stderr io.Writer, message string) int {
	fmt.Fprintf(stderr, "Error: %s\n", message)
	return 1
}

func printJSON(stdout io.Writer, value interface{}) int {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(stdout, "%v\n", value)
		return 0
	}
	fmt.Fprintln(stdout, string(encoded))
	return 0
}

func runSimpleGet(client *apiClient, path string, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		return printUsageError(stderr, "unexpected positional arguments")
	}
	var out json.RawMessage
	if err := client.do("GET", path, nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runEventsCommand(client *apiClient, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	limit := fs.Int("limit", 0, "maximum number of events (server default when zero)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *limit < 0 {
		return printUsageError(stderr, "--limit must not be negative")
	}
	path := "/v1/events"
	if *limit > 0 {
		path += "?limit=" + strconv.Itoa(*limit)
	}
	var out json.RawMessage
	if err := client.do("GET", path, nil, &out); err != nil {
		return printError(stderr, err)
	}
	return printJSON(stdout, out)
}

func runProfileCommand(path string, p profile, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printUsageError(stderr, "profile requires show or save")
	}
	switch args[0] {
	case "show":
		shown := p
		if shown.Token != "" {
			shown.Token = "***"
		}
		return printJSON(stdout, shown)
	case "save":
		if path == "" {
			return printUsageError(stderr, "no profile path available; pass --profile")
		}
		if err := saveProfile(path, p); err != nil {
			return printError(stderr, err)
		}
		fmt.Fprintf(stdout, "Saved profile to %s\n", path)
		return 0
	default:
		return printUsageError(stderr, "unknown profile subcommand "+args[0])
	}
}
