// Package main provides vatcheck, an operator CLI that runs the exemption
// rules against a single identifier without a server.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"vatguard/internal/exemption/identifier"
	"vatguard/internal/exemption/reconcile"
	"vatguard/internal/exemption/registry"
	"vatguard/internal/exemption/state"
	"vatguard/internal/platform/logger"
	"vatguard/pkg/platform/circuit"
)

// exitRejected is returned under --strict when the result is not favourable.
const exitRejected = 2

// Globals are flags shared by every subcommand.
type Globals struct {
	LogLevel string        `name:"log-level" default:"warn" help:"Log level (debug, info, warn, error)"`
	VIESURL  string        `name:"vies-url" env:"VIES_BASE_URL" help:"VIES REST base URL"`
	Timeout  time.Duration `name:"timeout" default:"5s" help:"Registry lookup timeout"`
	Strict   bool          `name:"strict" help:"Exit with status 2 when the identifier is invalid or not exempt"`
}

// CLI defines the command-line interface using Kong
var CLI struct {
	Globals

	Validate ValidateCmd `cmd:"" help:"Normalize and validate a VAT number"`
	Evaluate EvaluateCmd `cmd:"" help:"Decide whether a transaction would be VAT exempt"`
}

// ValidateCmd validates one identifier.
type ValidateCmd struct {
	VAT      string `arg:"" help:"VAT number, with or without separators"`
	Registry bool   `name:"registry" help:"Confirm the number against VIES"`
	Required bool   `name:"required" help:"Treat an empty number as an error"`
}

func (c *ValidateCmd) Run(g *Globals) error {
	validator := newValidator(g, c.Registry)
	out := validator.Validate(context.Background(), c.VAT, identifier.Policy{
		Required:      c.Required,
		CheckRegistry: c.Registry,
	})
	if err := writeJSON(os.Stdout, out); err != nil {
		return err
	}
	if g.Strict && !out.Valid {
		os.Exit(exitRejected)
	}
	return nil
}

// EvaluateCmd runs the full decision for one transaction.
type EvaluateCmd struct {
	VAT      string   `name:"vat" help:"VAT number"`
	Billing  string   `name:"billing" help:"Billing country (ISO 3166-1 alpha-2)"`
	Shipping string   `name:"shipping" help:"Shipping country (ISO 3166-1 alpha-2)"`
	Methods  []string `name:"method" help:"Fulfillment method id, repeatable (e.g. flat_rate:2)"`
	Home     string   `name:"home" required:"" help:"Merchant home country"`
	Pickup   []string `name:"pickup" default:"local_pickup" help:"Fulfillment methods treated as in-person pickup"`
	Required bool     `name:"required" help:"Require a VAT number"`
	Registry bool     `name:"registry" help:"Confirm the number against VIES"`
	Disabled bool     `name:"disabled" help:"Evaluate with the exemption feature switched off"`
}

func (c *EvaluateCmd) Run(g *Globals) error {
	settings := reconcile.StaticSettings{
		FeatureEnabled:       !c.Disabled,
		IdentifierRequired:   c.Required,
		RegistryCheckEnabled: c.Registry,
		HomeCountry:          c.Home,
		PickupMethods:        c.Pickup,
	}
	controller := reconcile.New(newValidator(g, c.Registry), state.NewMemoryStore(), settings,
		reconcile.WithLogger(logger.NewWithWriter(os.Stderr, g.LogLevel)),
	)

	eval := controller.Evaluate(context.Background(), reconcile.Input{
		Identifier:         c.VAT,
		BillingCountry:     c.Billing,
		ShippingCountry:    c.Shipping,
		FulfillmentMethods: c.Methods,
	})
	if err := writeJSON(os.Stdout, eval); err != nil {
		return err
	}
	if g.Strict && !eval.Verdict.Exempt {
		os.Exit(exitRejected)
	}
	return nil
}

func newValidator(g *Globals, withRegistry bool) *identifier.Validator {
	log := logger.NewWithWriter(os.Stderr, g.LogLevel)
	opts := []identifier.Option{
		identifier.WithLogger(log),
		identifier.WithTimeout(g.Timeout),
	}
	if withRegistry {
		checker := registry.NewCachingChecker(
			registry.NewBreakerChecker(registry.NewVIESClient(g.VIESURL, g.Timeout), circuit.New("vies"), log),
			registry.NewMemoryCache(time.Hour),
			registry.WithCacheLogger(log),
		)
		opts = append(opts, identifier.WithChecker(checker))
	}
	return identifier.NewValidator(opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("vatcheck"),
		kong.Description("Validate VAT numbers and evaluate exemption decisions"),
		kong.UsageOnError(),
	)
	slog.SetDefault(logger.NewWithWriter(os.Stderr, CLI.LogLevel))
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
