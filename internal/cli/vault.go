package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/ui"
	"github.com/yolodolo42/amera/internal/vault"
)

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Yield vaults: catalog, projections and positions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List vaults with APY, fees and risk",
		RunE:  a.runVaultList,
	}

	project := &cobra.Command{
		Use:   "project <vault> <amount>",
		Short: "Project earnings for a deposit",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runVaultProject,
	}
	project.Flags().Int("months", 12, "Projection horizon in months")

	history := &cobra.Command{
		Use:   "history <vault>",
		Short: "Show the vault's NAV over a period",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runVaultHistory,
	}
	history.Flags().String("period", vault.DefaultPeriod, "Period: "+strings.Join(vault.Periods(), ", "))

	deposit := &cobra.Command{
		Use:   "deposit <vault> <amount>",
		Short: "Record a deposit into a vault",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runVaultDeposit,
	}
	withdraw := &cobra.Command{
		Use:   "withdraw <vault> <amount>",
		Short: "Record a withdrawal from a vault",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runVaultWithdraw,
	}
	positions := &cobra.Command{
		Use:   "positions",
		Short: "Show vault balances and recent movements",
		RunE:  a.runVaultPositions,
	}
	for _, c := range []*cobra.Command{deposit, withdraw, positions} {
		c.Flags().String("address", "", "Owner address (uses the session wallet if not specified)")
	}
	for _, c := range []*cobra.Command{deposit, withdraw} {
		c.Flags().BoolP("yes", "y", false, "Skip confirmation")
	}

	cmd.AddCommand(list, project, history, deposit, withdraw, positions)
	return cmd
}

func usd(d interface{ InexactFloat64() float64 }) string {
	return market.FormatPrice(d.InexactFloat64(), "usd")
}

func (a *app) runVaultList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %-26s %7s %8s %8s  %s\n", "ID", "NAME", "APY", "DEPOSIT", "WITHDRAW", "RISK")
	for _, v := range vault.List() {
		fmt.Fprintf(out, "%-12s %-26s %6s%% %7s%% %7s%%  %s\n",
			v.ID, v.Name, v.APY.StringFixed(1), v.DepositFee.String(), v.WithdrawalFee.String(), v.RiskLevel)
	}
	return nil
}

func (a *app) runVaultProject(cmd *cobra.Command, args []string) error {
	v, err := vault.Get(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	months, _ := cmd.Flags().GetInt("months")
	if months <= 0 {
		return fmt.Errorf("--months must be positive")
	}

	fee, net, err := vault.DepositFee(v.ID, amount)
	if err != nil {
		return err
	}
	earnings := vault.ProjectEarnings(net, v.APY, months)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.TitleStyle.Render(v.Name))
	fmt.Fprintln(out, ui.KeyValue("Deposit", usd(amount)))
	fmt.Fprintln(out, ui.KeyValue("Deposit fee", usd(fee)))
	fmt.Fprintln(out, ui.KeyValue("Invested", usd(net)))
	fmt.Fprintln(out, ui.KeyValue("Monthly", usd(v.MonthlyEarnings(net))))
	fmt.Fprintln(out, ui.KeyValue(fmt.Sprintf("%d-month yield", months), usd(earnings)))
	fmt.Fprintln(out, ui.KeyValue("Total", usd(net.Add(earnings))))
	return nil
}

func (a *app) runVaultHistory(cmd *cobra.Command, args []string) error {
	period, _ := cmd.Flags().GetString("period")
	points, err := vault.HistoricalPrices(args[0], period, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(points) == 0 {
		return nil
	}
	first, last := points[0], points[len(points)-1]
	fmt.Fprintln(out, ui.KeyValue("From", first.Date))
	fmt.Fprintln(out, ui.KeyValue("To", last.Date))
	fmt.Fprintln(out, ui.KeyValue("NAV", fmt.Sprintf("%.6f → %.6f", first.Price, last.Price)))
	fmt.Fprintln(out, ui.KeyValue("Change", market.FormatPercentage((last.Price-first.Price)/first.Price*100)))
	return nil
}

func (a *app) openLedger() (*vault.Ledger, error) {
	l, err := vault.OpenLedger(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open vault ledger: %w", err)
	}
	return l, nil
}

func (a *app) runVaultDeposit(cmd *cobra.Command, args []string) error {
	return a.runVaultMovement(cmd, args, vault.KindDeposit)
}

func (a *app) runVaultWithdraw(cmd *cobra.Command, args []string) error {
	return a.runVaultMovement(cmd, args, vault.KindWithdrawal)
}

func (a *app) runVaultMovement(cmd *cobra.Command, args []string, kind vault.Kind) error {
	v, err := vault.Get(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	addressFlag, _ := cmd.Flags().GetString("address")
	owner, _, err := a.ownerAddress(addressFlag)
	if err != nil {
		return err
	}

	fee := v.DepositFeeFor(amount)
	if kind == vault.KindWithdrawal {
		fee = v.WithdrawalFeeFor(amount)
	}
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := a.confirm(fmt.Sprintf("%s %s %s %s (fee %s)?", capitalize(string(kind)), usd(amount), preposition(kind), v.Name, usd(fee)))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cancelled")
		}
	}

	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	var m *vault.Movement
	if kind == vault.KindDeposit {
		m, err = ledger.Deposit(cmd.Context(), owner.Hex(), v.ID, amount)
	} else {
		m, err = ledger.Withdraw(cmd.Context(), owner.Hex(), v.ID, amount)
	}
	if err != nil {
		return err
	}
	a.log.Info().Str("vault", v.ID).Str("kind", string(kind)).Str("amount", amount.String()).Str("owner", owner.Hex()).Msg("vault movement recorded")

	balance, err := ledger.Balance(cmd.Context(), owner.Hex(), v.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" "+capitalize(string(kind))+" recorded"))
	fmt.Fprintln(out, ui.KeyValue("Fee", usd(m.Fee)))
	fmt.Fprintln(out, ui.KeyValue("Net", usd(m.Net)))
	fmt.Fprintln(out, ui.KeyValue("Vault balance", usd(balance)))
	return nil
}

func preposition(kind vault.Kind) string {
	if kind == vault.KindWithdrawal {
		return "from"
	}
	return "into"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *app) runVaultPositions(cmd *cobra.Command, args []string) error {
	addressFlag, _ := cmd.Flags().GetString("address")
	owner, _, err := a.ownerAddress(addressFlag)
	if err != nil {
		return err
	}
	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	positions, err := ledger.Positions(cmd.Context(), owner.Hex())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(positions) == 0 {
		fmt.Fprintln(out, "No vault positions.")
		return nil
	}
	for _, p := range positions {
		fmt.Fprintf(out, "%-26s %14s  %s/mo\n", p.Vault.Name, usd(p.Balance), usd(p.MonthlyEarnings))
	}

	history, err := ledger.History(cmd.Context(), owner.Hex())
	if err != nil {
		return err
	}
	if len(history) > 0 {
		fmt.Fprintln(out)
		printMovements(out, history)
	}
	return nil
}

func printMovements(out io.Writer, history []vault.Movement) {
	fmt.Fprintln(out, ui.TitleStyle.Render("Recent movements"))
	for _, m := range history[max(0, len(history)-10):] {
		fmt.Fprintf(out, "%s  %-10s %-12s %14s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Kind, m.VaultID, usd(m.Amount))
	}
}
