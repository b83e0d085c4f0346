// Command rle4d serves the rle4 encoder over HTTP.
//
//	POST /encode    image in, rle4 stream out
//	POST /preview   image in, quantized PNG out
//	GET  /healthz
//
// Conversion flags and -profile set the defaults; query parameters
// (levels, invert, fit, rotate, flip, crop, compress) override them per request.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flavioheleno/rle4/internal/config"
	"github.com/flavioheleno/rle4/internal/logging"
	"github.com/flavioheleno/rle4/internal/server"
)

func main() {
	flags := flag.NewFlagSet("rle4d", flag.ExitOnError)
	listen := flags.String("listen", ":9000", "address to listen on")
	debug := flags.Bool("debug", false, "log debug output")

	cfg, err := config.Parse(flags, os.Args[1:])
	log := logging.New(os.Stdout, *debug)
	if err != nil {
		log.Error.Fatalf("config: %v", err)
	}

	// prep graceful exit
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           server.New(cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info.Printf("listening on %s", *listen)
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error.Fatalf("server error: %v", err)
		}
	}()

	sig := <-sigs
	log.Info.Printf("%v: exiting...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error.Fatalf("graceful shutdown failed! %v", err)
	}
	log.Info.Println("server shutdown")
}
