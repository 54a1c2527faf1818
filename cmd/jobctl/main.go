// jobctl submits one analysis job to the queue and polls it to completion.
// It renders the submitting/waiting/done/error lifecycle on stderr and writes
// the terminal payload (result or problem document) to stdout. Ctrl-C cancels
// the poll loop at the next safe point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/medancode420/PetPlantr/pkg/config"
	"github.com/medancode420/PetPlantr/pkg/idempotency"
	"github.com/medancode420/PetPlantr/pkg/queueclient"
	"github.com/medancode420/PetPlantr/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	endpoint := flag.String("endpoint", cfg.Endpoint, "submission endpoint URL")
	payloadPath := flag.String("payload", "", "path to a JSON payload file (default: read stdin)")
	interval := flag.Duration("interval", 0, "poll interval (default: the server's Retry-After hint)")
	timeout := flag.Duration("timeout", time.Duration(cfg.PollTimeoutS)*time.Second, "total poll budget")
	key := flag.String("key", "", "idempotency key (default: generated)")
	noKey := flag.Bool("no-key", false, "submit without an idempotency key")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := telemetry.InitTracer(ctx, "jobctl")
	defer func() { _ = shutdown(context.Background()) }()

	payload, err := readPayload(*payloadPath)
	if err != nil {
		log.Fatalf("failed to read payload: %v", err)
	}

	opts := []queueclient.Option{
		queueclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RequestTimeoutS) * time.Second}),
	}
	if name, value, ok := splitHeader(cfg.AuthHeader); ok {
		opts = append(opts, queueclient.WithHeader(name, value))
	}
	client := queueclient.NewClient(opts...)

	submitKey := *key
	if submitKey == "" && !*noKey {
		submitKey = idempotency.NewKey()
	}

	log.Printf("submitting to %s", *endpoint)
	sctx, span := telemetry.Tracer().Start(ctx, "queue.submit")
	outcome, err := client.Submit(sctx, *endpoint, payload, queueclient.SubmitOptions{IdempotencyKey: submitKey})
	span.End()
	if err != nil {
		log.Fatalf("submission failed: %v", err)
	}
	if outcome.Problem != nil {
		emit(outcome.Problem)
		os.Exit(1)
	}

	accepted := outcome.Accepted
	pollInterval := *interval
	if pollInterval == 0 {
		pollInterval = time.Duration(accepted.RetryAfterSeconds) * time.Second
	}
	log.Printf("accepted, polling %s every %s", accepted.StatusURL, pollInterval)

	pctx, span := telemetry.Tracer().Start(ctx, "queue.poll")
	final, err := client.Poll(pctx, resolveStatusURL(*endpoint, accepted.StatusURL), queueclient.PollConfig{
		Interval: pollInterval,
		Timeout:  *timeout,
	})
	span.End()
	switch {
	case errors.Is(err, queueclient.ErrPollTimeout):
		log.Fatalf("gave up waiting: %v", err)
	case errors.Is(err, context.Canceled):
		log.Fatalf("cancelled: %v", err)
	case err != nil:
		log.Fatalf("polling failed: %v", err)
	}

	if final.Problem != nil {
		emit(final.Problem)
		os.Exit(1)
	}

	log.Printf("done (HTTP %d)", final.StatusCode)
	if final.Data == nil {
		fmt.Println("{}")
		return
	}
	emit(final.Data)
}

// readPayload loads the submission body from a file or stdin. An empty
// payload submits an empty JSON object.
func readPayload(path string) (json.RawMessage, error) {
	var raw []byte
	var err error
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}

// resolveStatusURL turns a relative status URL into an absolute one against
// the submission endpoint's origin.
func resolveStatusURL(endpoint, statusURL string) string {
	if strings.HasPrefix(statusURL, "http://") || strings.HasPrefix(statusURL, "https://") {
		return statusURL
	}
	idx := strings.Index(endpoint, "://")
	if idx == -1 {
		return statusURL
	}
	origin := endpoint
	if slash := strings.Index(endpoint[idx+3:], "/"); slash != -1 {
		origin = endpoint[:idx+3+slash]
	}
	return origin + statusURL
}

// splitHeader parses a "Name: value" configuration string.
func splitHeader(raw string) (string, string, bool) {
	name, value, ok := strings.Cut(raw, ":")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
