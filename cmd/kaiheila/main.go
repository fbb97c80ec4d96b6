package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kaiheila/internal/infra/logger"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "version":
		fmt.Println(versionString())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runCommand(ctx, os.Args[1], os.Args[2:], os.Stdout)
	stop()
	if err != nil {
		if err == errUnknownCommand {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'kaiheila --help' for usage information.\n", os.Args[1])
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", os.Args[1], logger.Redact(err.Error()))
		}
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`kaiheila - command line client for the KOOK (Kaiheila) API

USAGE:
    kaiheila COMMAND [FLAGS]

COMMANDS:
    gateway     Resolve the gateway URL (optionally with resume state, or dial it)
    guilds      List joined guilds
    guild       Show one guild with its roles and channels
    members     List the members of a guild
    mutes       List muted members of a guild
    mute        Mute or unmute a member
    version     Print the client version

COMMON FLAGS:
    --config PATH      Config file (default: ./config.yaml, missing file uses defaults)
    --token TOKEN      API token (overrides config and KAIHEILA_API_TOKEN)
    --oauth2           Authenticate with an OAuth2 bearer token instead of a bot token
    --base-url URL     API origin plus version prefix
    --json             Print JSON instead of a table

CONFIGURATION:
    Config file: ./config.yaml
    Environment: KAIHEILA_* variables override config
    Encrypted token: set api.token to "enc:..." and KAIHEILA_CONFIG_KEY

EXAMPLES:
    kaiheila guilds --token 1/MTA=/abc
    kaiheila members --guild 123 --search alice --joined-at=true
    kaiheila gateway --resume-sn 42 --session-id 7f3c
    kaiheila mute --guild 123 --user 456 --type headset --delete`)
}
