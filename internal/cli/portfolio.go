package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/session"
	"github.com/yolodolo42/amera/internal/ui"
)

// nativeCoinIDs maps gas token symbols to market IDs for USD valuation.
var nativeCoinIDs = map[string]string{
	"ETH":   market.Ethereum,
	"MATIC": "matic-network",
}

func newPortfolioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "View portfolio balances",
		Long: `Display native and Digital USD balances across configured EVM chains.
The address defaults to the connected session.`,
		RunE: a.runPortfolio,
	}
	cmd.Flags().String("address", "", "Address to check (uses the session wallet if not specified)")
	cmd.Flags().StringSlice("chains", []string{"ethereum", "base"}, "Chains to query")
	cmd.Flags().Bool("testnet", false, "Include testnet chains")
	cmd.Flags().Bool("usd", false, "Value native balances in USD using market prices")
	return cmd
}

func (a *app) runPortfolio(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	chains, _ := cmd.Flags().GetStringSlice("chains")
	includeTestnet, _ := cmd.Flags().GetBool("testnet")
	withUSD, _ := cmd.Flags().GetBool("usd")

	out := cmd.OutOrStdout()
	address, demo, err := a.ownerAddress(addressFlag)
	if err != nil {
		return err
	}
	if demo {
		printDemoPortfolio(out)
		return nil
	}

	if includeTestnet {
		chains = append(chains, "sepolia", "base-sepolia")
	}

	client := chain.NewClient(chain.NewRegistry())
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	portfolio, err := client.GetPortfolio(ctx, address, chains)
	if err != nil {
		return err
	}

	var prices map[string]float64
	if withUSD {
		prices, err = a.marketClient().CoinPrices(ctx, []string{market.Ethereum, "matic-network"})
		if err != nil {
			a.log.Warn().Err(err).Msg("market prices unavailable")
		}
	}

	fmt.Fprintln(out, ui.TitleStyle.Render("Portfolio for "+portfolio.Address))
	fmt.Fprintln(out, ui.Rule(57))

	for _, chainName := range chains {
		native, ok := portfolio.NativeBalances[chainName]
		if !ok {
			fmt.Fprintf(out, "%s %-12s  %s\n", ui.WarningStyle.Render("⚠"), chainName, ui.SelectorDim.Render("unavailable"))
			if reason := portfolio.Errors[chainName]; reason != "" {
				a.log.Debug().Str("chain", chainName).Str("error", reason).Msg("portfolio chain skipped")
			}
			continue
		}

		line := fmt.Sprintf("%s %-12s  %s %s", indicator(native.Balance.Sign() > 0), chainName,
			chain.FormatBalance(native.Balance, native.Decimals), native.Symbol)
		if price, ok := prices[nativeCoinIDs[native.Symbol]]; ok {
			value := decimal.NewFromBigInt(native.Balance, -int32(native.Decimals)).InexactFloat64() * price
			line += ui.SelectorDim.Render("  ≈ " + market.FormatPrice(value, "usd"))
		}
		fmt.Fprintln(out, line)

		for _, tb := range portfolio.TokenBalances[chainName] {
			fmt.Fprintf(out, "  %-13s %s %s\n", tb.Name, chain.FormatUnits(tb.Balance, tb.Decimals), tb.Symbol)
		}
	}

	fmt.Fprintln(out, ui.Rule(57))
	fmt.Fprintln(out, ui.KeyValue("Digital USD", market.FormatPrice(portfolio.StableTotal().InexactFloat64(), "usd")))
	return nil
}

func printDemoPortfolio(out io.Writer) {
	fmt.Fprintln(out, ui.TitleStyle.Render("Portfolio for "+common.HexToAddress(session.DemoAddress).Hex())+
		ui.WarningStyle.Render(" (demo)"))
	fmt.Fprintln(out, ui.Rule(57))
	fmt.Fprintf(out, "%s %-12s  %s ETH\n", indicator(true), "ethereum", session.DemoBalance)
	for _, tb := range chain.DemoTokenBalances() {
		fmt.Fprintf(out, "  %-13s %s %s\n", tb.Name, chain.FormatUnits(tb.Balance, tb.Decimals), tb.Symbol)
	}
}

func indicator(nonZero bool) string {
	if nonZero {
		return ui.SuccessStyle.Render(ui.SymbolFilled)
	}
	return ui.SelectorDim.Render(ui.SymbolEmpty)
}
