// Command storefront is a terminal storefront client. The session is kept in
// the configured storage backend, so use the sqlite or redis driver to stay
// logged in between invocations.
//
//	storefront [-config file] [-activity] <command> [args]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/redis/go-redis/v9"

	storefront "github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/activitymap"
	"github.com/goliatone/go-storefront/config"
	"github.com/goliatone/go-storefront/storage"
)

type App struct {
	cfg    *config.Config
	client *storefront.Client
	out    io.Writer
	in     io.Reader
	close  []func() error
}

func main() {
	cfgPath := flag.String("config", "", "config file (yaml, json or toml)")
	activity := flag.Bool("activity", false, "print activity events")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	app, err := NewApp(ctx, *cfgPath, *activity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", storefront.UserMessage(err))
		app.Close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: storefront [-config file] [-activity] <command> [args]

commands:
  login <email> <password>
  register <first> <last> <email> <password>
  logout
  whoami
  products
  product <id>
  reviews <product-id>
  review <product-id> <rating> [comment]
  cart
  add <product-id> [quantity]
  update <product-id> <quantity>
  remove <product-id>
  checkout <address> <phone>
  orders
  order <id>
`)
}

// NewApp loads the configuration and wires the client.
func NewApp(ctx context.Context, cfgPath string, activity bool) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, out: os.Stdout, in: os.Stdin}

	logger := storefront.NewSlogLogger(storefront.SlogOptions{Level: cfg.LogLevel})

	persistence, err := app.openStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := []storefront.ClientOption{
		storefront.WithLogger(logger),
		storefront.WithPersistence(persistence),
	}
	if activity {
		opts = append(opts, storefront.WithActivitySink(storefront.ActivitySinkFunc(app.printActivity)))
	}

	client, err := storefront.NewClient(cfg, opts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.client = client
	app.close = append(app.close, func() error {
		client.Close()
		return nil
	})

	return app, nil
}

func (a *App) openStorage(ctx context.Context) (storefront.Persistence, error) {
	switch a.cfg.StorageDriver {
	case config.StorageSQLite:
		db, err := storage.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.close = append(a.close, db.Close)
		store := storage.NewBunStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: a.cfg.RedisAddr,
			DB:   a.cfg.RedisDB,
		})
		a.close = append(a.close, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", a.cfg.RedisAddr, err)
		}
		return storage.NewRedisStore(rdb), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// Close releases every resource in reverse order. It is safe to call twice.
func (a *App) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		if err := a.close[i](); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
	a.close = nil
}

func (a *App) printActivity(_ context.Context, event storefront.ActivityEvent) error {
	fmt.Fprintln(os.Stderr, print.MaybePrettyJSON(activitymap.Normalize(event, activitymap.WithActorFallback("cli"))))
	return nil
}

func (a *App) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	var answer string
	if _, err := fmt.Fscanln(a.in, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
