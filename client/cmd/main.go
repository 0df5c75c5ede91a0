package main

import (
	"consultant/client"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8000", "consultant API base URL")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-question timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	questions := client.Samples
	if flag.NArg() > 0 {
		questions = make([]client.Question, 0, flag.NArg())
		for _, q := range flag.Args() {
			questions = append(questions, client.Question{Text: q})
		}
	}

	results := client.New(*addr, *timeout).Run(ctx, questions)
	if client.Render(os.Stdout, results) > 0 {
		os.Exit(1)
	}
}
