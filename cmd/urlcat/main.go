// Command urlcat fetches a file, http, or https URL and writes its body to
// stdout, printing a short summary of the response to stderr.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	urlstream "github.com/WhileEndless/urlstream"
)

func main() {
	insecure := flag.Bool("k", false, "skip TLS certificate verification")
	caCert := flag.String("cacert", "", "path to a PEM CA bundle to trust instead of the system store")
	timeout := flag.Duration("timeout", 30*time.Second, "overall connect timeout")
	showHeaders := flag.Bool("i", false, "print response headers to stderr before the body")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: urlcat [-k] [-cacert file] [-i] <url>")
	}

	opts := urlstream.NewOptionBag()
	if *insecure {
		opts.SetVerifyPeer(false)
	}
	if *caCert != "" {
		opts.SetCACert(*caCert)
	}

	s := urlstream.New(opts)
	t := urlstream.DefaultTimeouts()
	t.Connect = *timeout
	s.SetTimeouts(t)

	ctx := context.Background()
	u, err := urlstream.ParseURL(flag.Arg(0))
	if err != nil {
		log.Fatalf("parse url: %v", err)
	}

	if err := s.Open(ctx, u); err != nil {
		log.Fatalf("open: %v", err)
	}
	defer s.Close()

	if *showHeaders {
		log.Printf("final url: %s", s.FinalURL())
		log.Printf("content-type: %s", s.ContentType())
		log.Printf("content-length: %d", s.ContentLength())
		if h := s.Headers(); h != "" {
			log.Printf("headers:\n%s", h)
		}
	}

	if _, err := io.Copy(os.Stdout, s); err != nil {
		log.Fatalf("read: %v", err)
	}

	m := s.Metrics()
	log.Printf("timing: %s", m.String())
}
