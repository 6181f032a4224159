// Command storefront-mock serves the in-memory storefront API for local
// development of storefront clients.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-storefront/storefronttest"
)

type seedUser struct {
	first, last, email, password string
	roles                        []string
}

var seedUsers = []seedUser{
	{"Ada", "Lovelace", "ada@example.com", "password123", []string{"USER"}},
	{"Grace", "Hopper", "admin@example.com", "password123", []string{"USER", "ADMIN"}},
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	secret := flag.String("secret", "", "HS256 signing secret (random default for tests)")
	ttl := flag.Duration("token-ttl", time.Hour, "lifetime of issued tokens")
	noSeed := flag.Bool("no-seed", false, "do not create the demo accounts")
	flag.Parse()

	opts := []storefronttest.Option{storefronttest.WithTokenTTL(*ttl)}
	if *secret != "" {
		opts = append(opts, storefronttest.WithSecret([]byte(*secret)))
	}
	srv := storefronttest.NewServer(opts...)

	if !*noSeed {
		for _, u := range seedUsers {
			if _, err := srv.AddUser(u.first, u.last, u.email, u.password, u.roles...); err != nil {
				log.Fatalf("seed user %s: %v", u.email, err)
			}
		}
	}

	go func() {
		if err := srv.Listen(*addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	fmt.Printf("storefront mock API on http://%s%s\n", *addr, storefronttest.APIPrefix)
	if !*noSeed {
		for _, u := range seedUsers {
			fmt.Printf("  %s / %s\n", u.email, u.password)
		}
	}

	sig := WaitExitSignal()
	fmt.Printf("received %s, shutting down\n", sig)
	if err := srv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		os.Exit(1)
	}
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
