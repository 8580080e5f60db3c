package cli

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/swap"
	"github.com/yolodolo42/amera/internal/ui"
)

// Impact at or above this percentage is highlighted.
var swapImpactWarning = decimal.NewFromInt(3)

func newSwapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Indicative swap quotes on Ethereum, Base and TRON",
	}

	quote := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap between two listed tokens",
		RunE:  a.runSwapQuote,
	}
	quote.Flags().String("from", "USDC", "Token to sell (symbol or address)")
	quote.Flags().String("to", "", "Token to buy (symbol or address, e.g. WETH)")
	quote.Flags().String("amount", "", "Amount to sell")
	_ = quote.MarkFlagRequired("to")
	_ = quote.MarkFlagRequired("amount")

	tokens := &cobra.Command{
		Use:   "tokens",
		Short: "List swappable tokens on the chain",
		RunE:  a.runSwapTokens,
	}

	cmd.AddCommand(quote, tokens)
	return cmd
}

// swapChain resolves --chain and insists the product supports it.
func (a *app) swapChain() (*chain.ChainConfig, error) {
	cfg, err := a.defaultChain(chain.NewRegistry())
	if err != nil {
		return nil, err
	}
	if !swap.IsSupportedChain(cfg.ChainIDInt) {
		return nil, fmt.Errorf("swaps are not available on %s", cfg.Name)
	}
	return cfg, nil
}

func (a *app) runSwapQuote(cmd *cobra.Command, args []string) error {
	cfg, err := a.swapChain()
	if err != nil {
		return err
	}
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	amountFlag, _ := cmd.Flags().GetString("amount")
	amount, err := parseAmount(amountFlag)
	if err != nil {
		return err
	}

	q, err := swap.GetQuote(cfg.ChainIDInt, from, to, amount)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("%s on %s", q.Dex, cfg.Name)))
	fmt.Fprintln(out, ui.KeyValue("You pay", q.FromAmount.String()+" "+q.From.Symbol))
	fmt.Fprintln(out, ui.KeyValue("You receive", q.ToAmount.String()+" "+q.To.Symbol))
	fmt.Fprintln(out, ui.KeyValue("Rate", fmt.Sprintf("1 %s = %s %s", q.From.Symbol, q.Rate.Round(8).String(), q.To.Symbol)))

	impact := q.PriceImpactString()
	if q.PriceImpact.GreaterThanOrEqual(swapImpactWarning) {
		impact = ui.WarningStyle.Render(impact)
	}
	fmt.Fprintln(out, ui.KeyValue("Price impact", impact))
	fmt.Fprintln(out, ui.KeyValue("Route", strings.Join(q.Route, " → ")))
	return nil
}

func (a *app) runSwapTokens(cmd *cobra.Command, args []string) error {
	cfg, err := a.swapChain()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.TitleStyle.Render(swap.DexName(cfg.ChainIDInt)+" tokens on "+cfg.Name))
	for _, t := range swap.TokensForChain(cfg.ChainIDInt) {
		fmt.Fprintf(out, "%-6s %-22s %s\n", t.Symbol, t.Name, ui.SelectorDim.Render(t.Address))
	}
	return nil
}
