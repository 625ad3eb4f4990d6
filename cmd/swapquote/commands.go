package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swapquote/internal/aggregator"
	"swapquote/internal/app"
	"swapquote/internal/chain"
	"swapquote/internal/config"
	"swapquote/internal/currency"
	"swapquote/internal/logger"
	"swapquote/internal/quote"
)

// service is the part of *quote.Service the commands use.
type service interface {
	quote.Quoter
	Chain() chain.Chain
	Currencies(ctx context.Context) ([]currency.Currency, error)
	Resolve(ctx context.Context, addr common.Address) (currency.Currency, error)
	Prices(ctx context.Context) (currency.Prices, error)
}

type builder func(ctx context.Context, configPath, logLevel string, stderr io.Writer) (service, func(), error)

func buildService(ctx context.Context, configPath, logLevel string, stderr io.Writer) (service, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if logLevel == "" {
		logLevel = cfg.Log.Level
	}
	log := logger.NewWithWriter(stderr, "cli", logLevel)
	a, err := app.Build(ctx, cfg, log, app.Options{SkipLeaderboard: true})
	if err != nil {
		return nil, nil, err
	}
	return a.Quotes, func() { _ = a.Close() }, nil
}

type rootOptions struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func newRootCmd(build builder) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "swapquote",
		Short:         "Compare swap quotes across DEX aggregators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "path to config file (.json, .yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of a table")

	withService := func(run func(cmd *cobra.Command, svc service) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			svc, closeFn, err := build(cmd.Context(), opts.configPath, opts.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd, svc)
		}
	}

	root.AddCommand(
		newQuoteCmd(opts, withService),
		newPricesCmd(opts, withService),
		newCurrenciesCmd(opts, withService),
	)
	return root
}

type runWith func(run func(cmd *cobra.Command, svc service) error) func(*cobra.Command, []string) error

type quoteFlags struct {
	in, out  string
	amount   string
	slippage float64
	gasPrice string
	user     string
	repeat   int
	interval time.Duration
}

func newQuoteCmd(opts *rootOptions, with runWith) *cobra.Command {
	f := &quoteFlags{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Fetch quotes from every aggregator and show the best one",
		Long: `Fetch quotes from every enabled aggregator and rank them by USD output net of gas.

Tokens are given as addresses or catalog symbols; the amount is in token units.

Example:
  $ swapquote quote --in ETH --out USDC --amount 1.5 --gas-price 1000000000`,
		Args: cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, svc service) error {
			return runQuote(cmd.Context(), cmd.OutOrStdout(), svc, f, opts.jsonOut)
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&f.in, "in", "", "input token address or symbol")
	fl.StringVar(&f.out, "out", "", "output token address or symbol")
	fl.StringVar(&f.amount, "amount", "", "input amount in token units, e.g. 1.5")
	fl.Float64Var(&f.slippage, "slippage", 0.5, "slippage limit in percent")
	fl.StringVar(&f.gasPrice, "gas-price", "", "gas price in wei")
	fl.StringVar(&f.user, "user", "", "signer address; requests executable transactions")
	fl.IntVar(&f.repeat, "repeat", 1, "number of quotes to request")
	fl.DurationVar(&f.interval, "interval", 5*time.Second, "delay between repeated quotes")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runQuote(ctx context.Context, w io.Writer, svc service, f *quoteFlags, jsonOut bool) error {
	req, err := buildRequest(ctx, svc, f)
	if err != nil {
		return err
	}
	if f.repeat <= 1 {
		res, err := svc.Quote(ctx, req)
		if err != nil {
			return err
		}
		return printResult(w, req, res, jsonOut)
	}

	// Each round runs through one session so a slow round that finishes
	// after a newer one is dropped instead of printed.
	sess := quote.NewSession(svc)
	defer sess.Close()

	// The exit status follows the newest round that was not superseded.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		lastRound = -1
		lastErr   error
	)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
loop:
	for i := 0; i < f.repeat; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := sess.Quote(ctx, req)
			if errors.Is(err, quote.ErrStale) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				err = printResult(w, req, res, jsonOut)
			}
			if err != nil {
				fmt.Fprintln(w, "error:", err)
			}
			if i > lastRound {
				lastRound, lastErr = i, err
			}
		}()
	}
	wg.Wait()
	return lastErr
}

func buildRequest(ctx context.Context, svc service, f *quoteFlags) (aggregator.Request, error) {
	in, err := lookup(ctx, svc, f.in)
	if err != nil {
		return aggregator.Request{}, fmt.Errorf("--in: %w", err)
	}
	out, err := lookup(ctx, svc, f.out)
	if err != nil {
		return aggregator.Request{}, fmt.Errorf("--out: %w", err)
	}
	if in.Equal(out) {
		return aggregator.Request{}, errors.New("--in and --out must differ")
	}
	amount, err := currency.ParseUnits(f.amount, in.Decimals)
	if err != nil || amount.Sign() <= 0 {
		return aggregator.Request{}, fmt.Errorf("--amount: invalid amount %q", f.amount)
	}
	req := aggregator.Request{In: in, Out: out, AmountIn: amount, SlippageLimitPercent: f.slippage}
	if f.gasPrice != "" {
		gp, ok := new(big.Int).SetString(f.gasPrice, 10)
		if !ok || gp.Sign() < 0 {
			return aggregator.Request{}, fmt.Errorf("--gas-price: invalid wei amount %q", f.gasPrice)
		}
		req.GasPrice = gp
	}
	if f.user != "" {
		addr, ok := currency.ParseAddress(f.user)
		if !ok {
			return aggregator.Request{}, fmt.Errorf("--user: invalid address %q", f.user)
		}
		req.User = &addr
	}
	return req, nil
}

// lookup accepts an address or a symbol. The native symbol always means
// the native currency.
func lookup(ctx context.Context, svc service, s string) (currency.Currency, error) {
	if addr, ok := currency.ParseAddress(s); ok {
		return svc.Resolve(ctx, addr)
	}
	if strings.EqualFold(s, svc.Chain().NativeCurrency.Symbol) {
		return svc.Chain().NativeCurrency, nil
	}
	cs, err := svc.Currencies(ctx)
	if err != nil {
		return currency.Currency{}, err
	}
	for _, c := range cs {
		if strings.EqualFold(c.Symbol, s) {
			return c, nil
		}
	}
	return currency.Currency{}, fmt.Errorf("unknown token %q", s)
}

func printResult(w io.Writer, req aggregator.Request, res quote.Result, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Best    string        `json:"best"`
			Ranking quote.Ranking `json:"ranking"`
			Result  quote.Result  `json:"result"`
		}{res.Best.AggregatorName(), res.Ranking, res})
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "AGGREGATOR\tAMOUNT OUT (%s)\tGAS\tGAS USD\tNET USD\t\n", req.Out.Symbol)
	for _, q := range res.All {
		mark := ""
		if q.Aggregator == res.Best.Aggregator && q.AmountOut == res.Best.AmountOut {
			mark = "*"
		}
		out := currency.FormatUnits(q.AmountOut, req.Out.Decimals)
		if q.NoRoute {
			out = "no route"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.4f\t%.4f\t%s\n", q.AggregatorName(), out, q.GasLimit, q.GasUSD, q.NetAmountOutUSD, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "best: %s (ranked by %s)\n", res.Best.AggregatorName(), res.Ranking)
	return err
}

func newPricesCmd(opts *rootOptions, with runWith) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Show merged USD prices from every aggregator",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, svc service) error {
			ctx := cmd.Context()
			ps, err := svc.Prices(ctx)
			if err != nil {
				return err
			}
			cs, err := svc.Currencies(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return json.NewEncoder(w).Encode(ps)
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tADDRESS\tUSD\t")
			for _, c := range cs {
				if p, ok := ps.Get(c.Address); ok {
					fmt.Fprintf(tw, "%s\t%s\t%g\t\n", c.Symbol, c.Key(), p)
				}
			}
			return tw.Flush()
		}),
	}
}

func newCurrenciesCmd(opts *rootOptions, with runWith) *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "List the tokens known to any aggregator",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, svc service) error {
			cs, err := svc.Currencies(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.jsonOut {
				return json.NewEncoder(w).Encode(cs)
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tNAME\tDECIMALS\tADDRESS\t")
			for _, c := range cs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t\n", c.Symbol, c.Name, c.Decimals, c.Key())
			}
			return tw.Flush()
		}),
	}
}
