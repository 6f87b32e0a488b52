// Command devtoken mints HS256 user tokens for local development, in the
// shape the identity provider issues.
package main

import (
    "errors"
    "fmt"
    "os"
    "time"

    "github.com/joho/godotenv"
    "github.com/spf13/pflag"

    "github.com/iliyamo/adas-events/internal/utils"
)

func main() {
    if err := run(os.Args[1:]); err != nil {
        fmt.Fprintf(os.Stderr, "error: %v\n", err)
        os.Exit(1)
    }
}

func run(args []string) error {
    _ = godotenv.Load()

    var (
        secret string
        userID string
        email  string
        name   string
        ttl    time.Duration
    )
    flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
    flagSet.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (default $JWT_SECRET)")
    flagSet.StringVarP(&userID, "user", "u", "", "user id placed in sub")
    flagSet.StringVarP(&email, "email", "e", "", "email claim")
    flagSet.StringVarP(&name, "name", "n", "", "display name claim")
    flagSet.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

    if err := flagSet.Parse(args); err != nil {
        if errors.Is(err, pflag.ErrHelp) {
            return nil
        }
        return err
    }
    if userID == "" {
        return errors.New("--user is required")
    }
    if secret == "" {
        return errors.New("no secret: set JWT_SECRET or pass --secret")
    }

    tok, err := utils.NewAccessToken(secret, userID, email, name, ttl)
    if err != nil {
        return err
    }
    fmt.Println(tok.Token)
    fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
    return nil
}
