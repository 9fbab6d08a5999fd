package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/telegram"
)

var loginCommand = &cli.Command{
	Name:   "login",
	Usage:  "Log into the source account and save the session",
	Before: prepareApp,
	Action: cmdLogin,
}

var stdin = bufio.NewReader(os.Stdin)

func readLine(prompt string, secret bool) (string, error) {
	fmt.Print(prompt)
	if secret && term.IsTerminal(int(os.Stdin.Fd())) {
		value, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		return strings.TrimSpace(string(value)), err
	}
	line, err := stdin.ReadString('\n')
	return strings.TrimSpace(line), err
}

func cmdLogin(ctx *cli.Context) error {
	cfg := getConfig(ctx)
	if cfg.Source.APIID == 0 || cfg.Source.APIHash == "" {
		return fmt.Errorf("source.api_id and source.api_hash must be set before logging in")
	}
	result, err := telegram.Login(ctx.Context, cfg.Source, readLine, *getLogger(ctx))
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%d)\n", result.Username, result.UserID)
	if result.PartnerAccessHash != 0 && cfg.Source.PartnerAccessHash == 0 {
		fmt.Printf("Partner found, set source.partner_access_hash to %d\n", result.PartnerAccessHash)
	}
	return nil
}
