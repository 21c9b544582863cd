package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/security"
)

type tokenCmd struct {
	subject string
	expiry  time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API access token" }
func (*tokenCmd) Usage() string {
	return `taxdecl token [-sub <subject>] [-expiry <duration>]

  Prints a bearer token signed with JWT_SECRET.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.subject, "sub", "cli", "Token subject")
	f.DurationVar(&c.expiry, "expiry", 0, "Token lifetime (default ACCESS_TOKEN_EXPIRY)")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	expiry := c.expiry
	if expiry <= 0 {
		expiry = config.Cfg.AccessTokenExpiry
	}
	auth := security.NewAuthService(config.Cfg.JWTSecret, expiry)
	if !auth.Enabled() {
		fail("JWT_SECRET is not set")
		return subcommands.ExitUsageError
	}
	token, err := auth.GenerateToken(c.subject)
	if err != nil {
		fail("Error generating token: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}
