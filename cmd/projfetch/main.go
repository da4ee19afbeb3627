package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCharnyshevich/jrblx-server/pkg/fetch"
)

// projfetch pulls a project file or a whole asset pack from any go-getter
// URL so it can be served as the default project. Examples:
//
//	projfetch -src https://example.com/islands/starter.jrblx -o ./starter.jrblx
//	projfetch -src "git::https://github.com/acme/packs.git//islands" -dir -o ./packs
func main() {
	var (
		src = flag.String("src", "", "source url (go-getter syntax)")
		out = flag.String("o", "./project.jrblx", "output path")
		dir = flag.Bool("dir", false, "fetch a directory tree instead of a single file")
	)
	flag.Parse()

	if *src == "" {
		log.Fatal("source url required")
	}
	if *out == "" {
		log.Fatal("output path required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("fetching %s", *src)

	var err error
	if *dir {
		if err = os.RemoveAll(*out); err != nil {
			log.Fatal(err)
		}
		err = fetch.Dir(ctx, *out, *src)
	} else {
		err = fetch.File(ctx, *out, *src)
	}
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("done fetching %s", *out)
}
