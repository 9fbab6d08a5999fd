package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/config"
)

// Prompter asks the operator for login details. secret hides the input where possible.
type Prompter func(prompt string, secret bool) (string, error)

// LoginResult describes the account that was logged in.
type LoginResult struct {
	UserID   int64
	Username string
	// PartnerAccessHash is zero when the partner was not found in recent dialogs.
	PartnerAccessHash int64
}

type promptAuth struct {
	phone  string
	prompt Prompter
}

var _ auth.UserAuthenticator = promptAuth{}

func (a promptAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Phone number: ", false)
}

func (a promptAuth) Password(_ context.Context) (string, error) {
	return a.prompt("Two-step verification password: ", true)
}

func (a promptAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Login code: ", false)
}

func (a promptAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a promptAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("signing up is not supported, log in with an existing account")
}

// Login runs the interactive login flow for the source account and stores
// the session in cfg.SessionFile.
func Login(ctx context.Context, cfg config.SourceConfig, prompt Prompter, log zerolog.Logger) (*LoginResult, error) {
	client := tgclient.NewClient(cfg.APIID, cfg.APIHash, tgclient.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})
	var result LoginResult
	err := client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(promptAuth{phone: cfg.Phone, prompt: prompt}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}
		self, err := client.Self(ctx)
		if err != nil {
			return mtprotoError("get self", err)
		}
		result.UserID, result.Username = self.ID, self.Username
		if cfg.PartnerUserID != 0 {
			partner, err := findDialogUser(ctx, client.API(), cfg.PartnerUserID)
			if err != nil {
				log.Warn().Err(err).Msg("Couldn't resolve partner")
			} else {
				result.PartnerAccessHash = partner.AccessHash
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
