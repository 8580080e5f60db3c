package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/ui"
)

func newMarketCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Cached market data",
	}

	prices := &cobra.Command{
		Use:   "prices [coin-id...]",
		Short: "Show USD prices (default bitcoin, ethereum, usd-coin)",
		RunE:  a.runMarketPrices,
	}

	history := &cobra.Command{
		Use:   "history <coin-id>",
		Short: "Summarize a price history",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runMarketHistory,
	}
	history.Flags().String("range", string(market.Range7d), "Time range: 1h, 4h, 24h, 7d, 30d, 1y")
	history.Flags().String("currency", "usd", "Quote currency")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tokens by name or symbol",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runMarketSearch,
	}

	trending := &cobra.Command{
		Use:   "trending",
		Short: "Show trending coins and the global market",
		RunE:  a.runMarketTrending,
	}

	cmd.AddCommand(prices, history, search, trending)
	return cmd
}

func (a *app) runMarketPrices(cmd *cobra.Command, args []string) error {
	ids := market.ParseIDs(strings.Join(args, ","))
	if len(ids) == 0 {
		ids = market.DefaultCoins
	}
	prices, err := a.marketClient().CoinPrices(cmd.Context(), ids)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range ids {
		price, ok := prices[id]
		if !ok {
			fmt.Fprintf(out, "%-20s %s\n", id, ui.SelectorDim.Render("unknown"))
			continue
		}
		fmt.Fprintf(out, "%-20s %s\n", id, market.FormatPrice(price, "usd"))
	}
	return nil
}

func (a *app) runMarketHistory(cmd *cobra.Command, args []string) error {
	rangeFlag, _ := cmd.Flags().GetString("range")
	currency, _ := cmd.Flags().GetString("currency")
	r, err := market.ParseTimeRange(rangeFlag)
	if err != nil {
		return err
	}

	points, err := a.marketClient().HistoricalPrices(cmd.Context(), args[0], r, currency)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(points) == 0 {
		fmt.Fprintln(out, "No price data.")
		return nil
	}

	first, last := points[0], points[len(points)-1]
	low, high := first.Price, first.Price
	for _, p := range points {
		low = min(low, p.Price)
		high = max(high, p.Price)
	}

	fmt.Fprintln(out, ui.TitleStyle.Render(fmt.Sprintf("%s, last %s", args[0], r)))
	fmt.Fprintln(out, ui.KeyValue("From", time.UnixMilli(first.Timestamp).UTC().Format(time.RFC3339)))
	fmt.Fprintln(out, ui.KeyValue("Open", market.FormatPrice(first.Price, currency)))
	fmt.Fprintln(out, ui.KeyValue("Close", market.FormatPrice(last.Price, currency)))
	fmt.Fprintln(out, ui.KeyValue("Low", market.FormatPrice(low, currency)))
	fmt.Fprintln(out, ui.KeyValue("High", market.FormatPrice(high, currency)))
	if first.Price != 0 {
		change := (last.Price - first.Price) / first.Price * 100
		fmt.Fprintln(out, ui.KeyValue("Change", market.FormatPercentage(change)))
	}
	fmt.Fprintln(out, ui.KeyValue("Samples", humanize.Comma(int64(len(points)))))
	return nil
}

func (a *app) runMarketSearch(cmd *cobra.Command, args []string) error {
	tokens, err := a.marketClient().SearchTokens(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tokens) == 0 {
		fmt.Fprintln(out, "No tokens found.")
		return nil
	}
	for _, t := range tokens {
		rank := "-"
		if t.MarketCapRank > 0 {
			rank = "#" + humanize.Comma(int64(t.MarketCapRank))
		}
		price := ""
		if t.CurrentPrice > 0 {
			price = market.FormatPrice(t.CurrentPrice, "usd")
		}
		fmt.Fprintf(out, "%-6s %-8s %-24s %s\n", rank, t.Symbol, t.Name, price)
	}
	return nil
}

func (a *app) runMarketTrending(cmd *cobra.Command, args []string) error {
	client := a.marketClient()
	coins, err := client.Trending(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.TitleStyle.Render("Trending"))
	for i, c := range coins {
		fmt.Fprintf(out, "%2d. %-8s %s\n", i+1, strings.ToUpper(c.Symbol), c.Name)
	}

	global, err := client.Global(cmd.Context())
	if err != nil {
		a.log.Warn().Err(err).Msg("global market data unavailable")
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.KeyValue("Market cap", "$"+humanize.SIWithDigits(global.TotalMarketCap["usd"], 2, "")))
	fmt.Fprintln(out, ui.KeyValue("24h change", market.FormatPercentage(global.MarketCapChangePercentage24hUSD)))
	fmt.Fprintln(out, ui.KeyValue("Active coins", humanize.Comma(int64(global.ActiveCryptocurrencies))))

	type share struct {
		sym string
		pct float64
	}
	var shares []share
	for sym, pct := range global.MarketCapPercentage {
		shares = append(shares, share{sym, pct})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].pct > shares[j].pct })
	if len(shares) > 3 {
		shares = shares[:3]
	}
	for _, s := range shares {
		fmt.Fprintln(out, ui.KeyValue(strings.ToUpper(s.sym)+" dominance", fmt.Sprintf("%.1f%%", s.pct)))
	}
	return nil
}
