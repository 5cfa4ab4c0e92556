package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

const usage = `usage: orderctl <command> [flags]

commands:
  validate -file order.json   check stock for an order
  submit   -file order.json   validate, confirm shortages and submit
  get      -id <order id>     show an order with its items

environment:
  ORDER_API_URL   API base url (default http://localhost:8080)
  ORDER_USER_ID   acting user id`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errDeclined) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	file := fs.String("file", "", "order json file")
	id := fs.String("id", "", "order id")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	confirmTimeout := fs.Duration("confirm-timeout", 2*time.Minute, "how long to wait for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := newAPIClient(getenv("ORDER_API_URL", "http://localhost:8080"), os.Getenv("ORDER_USER_ID"), *timeout)

	switch cmd {
	case "validate":
		req, err := readOrder(*file)
		if err != nil {
			return err
		}
		res, err := client.Validate(ctx, req.Items)
		if err != nil {
			return err
		}
		fmt.Print(renderValidation(res))
		return nil
	case "submit":
		req, err := readOrder(*file)
		if err != nil {
			return err
		}
		confirm := func(ctx context.Context, res *stock.ValidationResult) (bool, error) {
			return promptConfirm(ctx, res, *confirmTimeout)
		}
		_, err = submitOrder(ctx, client, req, confirm, os.Stdout)
		return err
	case "get":
		if *id == "" {
			return errors.New("-id is required")
		}
		o, err := client.Get(ctx, *id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(o)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func readOrder(path string) (validation.CreateOrderRequest, error) {
	var req validation.CreateOrderRequest
	if path == "" {
		return req, errors.New("-file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validation.New().Struct(req); err != nil {
		return req, fmt.Errorf("invalid order %s: %w", path, err)
	}
	return req, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
