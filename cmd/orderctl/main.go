package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/ec-order-engine/internal/auth"
	"github.com/example/ec-order-engine/internal/infrastructure/store"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("orderctl failed")
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "orderctl",
		Usage:     "operate the order engine",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			migrateCommand(),
			tokenCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	databaseURL := &cli.StringFlag{
		Name:     "database-url",
		Usage:    "postgres connection string",
		EnvVars:  []string{"DATABASE_URL"},
		Required: true,
	}
	run := func(dir store.Direction) cli.ActionFunc {
		return func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, time.Minute)
			defer cancel()

			db, err := store.ConnectPostgres(ctx, c.String("database-url"))
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := store.Migrate(db.DB, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "schema at version %d\n", version)
			return nil
		}
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the schema",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply all pending migrations", Flags: []cli.Flag{databaseURL}, Action: run(store.Up)},
			{Name: "down", Usage: "roll back every migration", Flags: []cli.Flag{databaseURL}, Action: run(store.Down)},
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint an access token",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
			&cli.StringFlag{Name: "subject", Value: "operator", Usage: "operator name or customer id"},
			&cli.StringFlag{Name: "role", Value: auth.RoleOperator, Usage: "operator or customer"},
			&cli.StringFlag{Name: "email"},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour},
		},
		Action: func(c *cli.Context) error {
			role := c.String("role")
			if role != auth.RoleOperator && role != auth.RoleCustomer {
				return fmt.Errorf("unknown role %q", role)
			}
			tokens := auth.NewTokenService(c.String("secret"), c.Duration("ttl"))
			token, expiresAt, err := tokens.Issue(c.String("subject"), c.String("email"), role)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			fmt.Fprintf(c.App.Writer, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}
