package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revrec/internal/clock"
	"github.com/smallbiznis/revrec/internal/config"
	"github.com/smallbiznis/revrec/internal/migration"
	"github.com/smallbiznis/revrec/internal/observability"
	obscontext "github.com/smallbiznis/revrec/internal/observability/context"
	recognitiondomain "github.com/smallbiznis/revrec/internal/recognition/domain"
	"github.com/smallbiznis/revrec/internal/server"
	"github.com/smallbiznis/revrec/pkg/db"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := &cli.App{
		Name:  "revrec",
		Usage: "materialize recognized revenue from paid invoices",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Action: func(c *cli.Context) error {
					fx.New(
						core(),
						migration.Module,
						server.Module,
					).Run()
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations and exit",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "down", Usage: "roll back `N` postgres migrations instead"},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("down")
					return runOnce(c.Context, fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
						if steps > 0 {
							sqlDB, err := conn.DB()
							if err != nil {
								return err
							}
							if err := migration.Rollback(sqlDB, steps); err != nil {
								return err
							}
							log.Info("migrations rolled back", zap.Int("steps", steps))
							return nil
						}
						if err := migration.Run(conn); err != nil {
							return err
						}
						log.Info("migrations applied")
						return nil
					}))
				},
			},
			{
				Name:  "replay",
				Usage: "re-run recognition for one invoice or for every paid invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "invoice", Usage: "invoice `ID` to replay"},
				},
				Action: func(c *cli.Context) error {
					invoiceID := c.String("invoice")
					ctx := obscontext.WithActor(c.Context, obscontext.ActorCLI)
					return runOnce(ctx,
						server.Services,
						fx.Invoke(func(svc recognitiondomain.Service, log *zap.Logger) error {
							if invoiceID != "" {
								outcome, err := svc.Replay(ctx, invoiceID)
								if err != nil {
									return err
								}
								log.Info("invoice replayed",
									zap.String("invoice_id", invoiceID),
									zap.Bool("eligible", outcome.Eligible),
									zap.String("skip_reason", string(outcome.SkipReason)),
									zap.Int64("inserted", outcome.Inserted),
								)
								return nil
							}

							summary, err := svc.ReplayPaid(ctx)
							if err != nil {
								return err
							}
							fmt.Fprintf(c.App.Writer, "replayed %d invoices, %d eligible, %d revenue records inserted\n",
								summary.Invoices, summary.Eligible, summary.Inserted)
							return nil
						}),
					)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func core() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// runOnce starts an app for a single command and stops it again.
func runOnce(ctx context.Context, opts ...fx.Option) error {
	app := fx.New(append([]fx.Option{core()}, opts...)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
