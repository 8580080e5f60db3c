package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/otc"
	"github.com/yolodolo42/amera/internal/ui"
)

func newOTCCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otc",
		Short: "OTC desk quotes for large trades",
	}

	fee := &cobra.Command{
		Use:   "fee <amount>",
		Short: "Show the desk fee tier for an amount",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runOTCFee,
	}

	quote := &cobra.Command{
		Use:   "quote",
		Short: "Request a quote (minimum $50,000)",
		Long: `Request a 15-minute OTC quote. Missing contact details are asked for
interactively when running in a terminal.`,
		RunE: a.runOTCQuote,
	}
	quote.Flags().String("name", "", "Client name")
	quote.Flags().String("email", "", "Client email")
	quote.Flags().String("phone", "", "Client phone")
	quote.Flags().String("amount", "", "Trade amount")
	quote.Flags().String("currency", "USD", "Currency paid")
	quote.Flags().String("target", "USDC", "Currency received")
	quote.Flags().String("direction", "buy", "buy or sell")
	quote.Flags().String("info", "", "Additional information for the desk")

	accept := &cobra.Command{
		Use:   "accept <quote-id>",
		Short: "Accept an open quote",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runOTCAccept,
	}

	cmd.AddCommand(fee, quote, accept)
	return cmd
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	return d, nil
}

func (a *app) runOTCFee(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	fee := otc.CalculateFee(amount)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.KeyValue("Amount", market.FormatPrice(amount.InexactFloat64(), "usd")))
	fmt.Fprintln(out, ui.KeyValue("Fee tier", fee.Percentage.String()+"%"))
	fmt.Fprintln(out, ui.KeyValue("Fee", market.FormatPrice(fee.Fee.InexactFloat64(), "usd")))
	fmt.Fprintln(out, ui.KeyValue("You receive", market.FormatPrice(fee.Net.InexactFloat64(), "usd")))
	if amount.LessThan(otc.MinimumAmount) {
		fmt.Fprintln(out, ui.WarningStyle.Render("\nBelow the desk minimum of "+market.FormatPrice(otc.MinimumAmount.InexactFloat64(), "usd")))
	}
	return nil
}

func (a *app) runOTCQuote(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	get := func(name string) string {
		v, _ := flags.GetString(name)
		return strings.TrimSpace(v)
	}
	values := map[string]string{
		"name": get("name"), "email": get("email"), "phone": get("phone"), "amount": get("amount"),
	}

	if (values["name"] == "" || values["email"] == "" || values["phone"] == "" || values["amount"] == "") && a.interactive() {
		filled, err := ui.RunForm("OTC quote request", []ui.Field{
			{Key: "name", Label: "Name", Value: values["name"], Required: true},
			{Key: "email", Label: "Email", Value: values["email"], Required: true},
			{Key: "phone", Label: "Phone", Value: values["phone"], Required: true},
			{Key: "amount", Label: "Amount", Value: values["amount"], Placeholder: "50000", Required: true},
		})
		if err != nil {
			return err
		}
		values = filled
	}

	var amount decimal.Decimal
	if values["amount"] != "" {
		var err error
		if amount, err = parseAmount(values["amount"]); err != nil {
			return err
		}
	}

	store, err := otc.OpenStore(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open quote store: %w", err)
	}
	defer store.Close()

	q, err := otc.NewService(store, a.log).RequestQuote(cmd.Context(), otc.Request{
		Name:           values["name"],
		Email:          values["email"],
		Phone:          values["phone"],
		Amount:         amount,
		Currency:       strings.ToUpper(get("currency")),
		TargetCurrency: strings.ToUpper(get("target")),
		Direction:      otc.Direction(strings.ToLower(get("direction"))),
		AdditionalInfo: get("info"),
	})
	if err != nil {
		return err
	}
	printQuote(cmd.OutOrStdout(), q)
	return nil
}

func printQuote(out io.Writer, q *otc.Quote) {
	fmt.Fprintln(out, ui.TitleStyle.Render("OTC quote "+q.ID))
	fmt.Fprintln(out, ui.KeyValue("Amount", q.Amount.StringFixed(2)+" "+q.Currency))
	fmt.Fprintln(out, ui.KeyValue("Fee", fmt.Sprintf("%s %s (%s%%)", q.Fee.StringFixed(2), q.Currency, q.FeePercentage.String())))
	fmt.Fprintln(out, ui.KeyValue("Rate", q.ExchangeRate.String()))
	fmt.Fprintln(out, ui.KeyValue("You receive", q.TargetAmount.String()+" "+q.TargetCurrency))
	fmt.Fprintln(out, ui.KeyValue("Expires", q.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST")))
}

func (a *app) runOTCAccept(cmd *cobra.Command, args []string) error {
	store, err := otc.OpenStore(a.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open quote store: %w", err)
	}
	defer store.Close()

	acc, err := otc.NewService(store, a.log).AcceptQuote(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" "+acc.Message))
	fmt.Fprintln(out, ui.KeyValue("Reference", acc.Reference))
	return nil
}
