package cli

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/tx"
	"github.com/yolodolo42/amera/internal/ui"
)

func newSendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send Digital USD to an address",
		Long: `Send Digital USD (USDC) from the session wallet. The transfer is
simulated, shown for confirmation, signed with the keystore password and
recorded locally with its receipt.`,
		RunE: a.runSend,
	}
	cmd.Flags().String("to", "", "Recipient address")
	cmd.Flags().String("amount", "", "Amount of Digital USD")
	cmd.Flags().String("from", "", "Sending address (uses the session wallet if not specified)")
	cmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
	cmd.Flags().Bool("no-wait", false, "Return after broadcasting without waiting for the receipt")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newTransfersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "List locally recorded transfers",
		RunE:  a.runTransfers,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of transfers")
	return cmd
}

func (a *app) runSend(cmd *cobra.Command, args []string) error {
	toFlag, _ := cmd.Flags().GetString("to")
	amountFlag, _ := cmd.Flags().GetString("amount")
	fromFlag, _ := cmd.Flags().GetString("from")
	yes, _ := cmd.Flags().GetBool("yes")
	noWait, _ := cmd.Flags().GetBool("no-wait")

	if !common.IsHexAddress(toFlag) {
		return fmt.Errorf("invalid recipient address: %s", toFlag)
	}
	recipient := common.HexToAddress(toFlag)

	from, demo, err := a.ownerAddress(fromFlag)
	if err != nil {
		return err
	}
	if demo {
		return fmt.Errorf("the demo wallet cannot send transactions")
	}

	reg := chain.NewRegistry()
	cfg, err := a.defaultChain(reg)
	if err != nil {
		return err
	}
	tokenHex, ok := chain.StablecoinAddress(cfg.ChainIDInt)
	if !ok || !cfg.IsEVM || !common.IsHexAddress(tokenHex) {
		return fmt.Errorf("sending Digital USD is not supported on %s", cfg.Name)
	}
	token := common.HexToAddress(tokenHex)

	client := chain.NewClient(reg)
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	balance, err := client.GetDigitalUSDBalance(ctx, cfg.Key, from)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	amount, err := tx.ParseUnits(amountFlag, balance.Decimals)
	if err != nil {
		return err
	}
	if balance.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient Digital USD: have %s, need %s",
			chain.FormatUnits(balance.Balance, balance.Decimals), chain.FormatUnits(amount, balance.Decimals))
	}

	intent := tx.TokenTransferIntent(cfg.Key, from, token, recipient, amount)
	intent.ChainID = cfg.ChainID
	policy, err := a.sendPolicy(balance.Decimals)
	if err != nil {
		return err
	}
	if err := tx.Validate(intent, policy); err != nil {
		return err
	}

	unsigned, fees, err := tx.BuildUnsignedTx(ctx, client, intent)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	display := chain.FormatUnits(amount, balance.Decimals)
	fmt.Fprintln(out, ui.TitleStyle.Render("Send Digital USD on "+cfg.Name))
	fmt.Fprintln(out, ui.KeyValue("From", from.Hex()))
	fmt.Fprintln(out, ui.KeyValue("To", recipient.Hex()))
	fmt.Fprintln(out, ui.KeyValue("Amount", display+" USDC"))
	fmt.Fprintln(out, ui.KeyValue("Max network fee", chain.FormatEther(fees.EstimatedCostWei)+" "+cfg.NativeCurrency))

	if !yes {
		ok, err := a.confirm("Send this transfer?")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cancelled")
		}
	}

	km, err := a.keystore()
	if err != nil {
		return err
	}
	password, err := a.password("Wallet password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	signer, err := km.GetSigner(from, password)
	if err != nil {
		return err
	}
	defer signer.Lock()

	receipts, err := tx.OpenReceiptStore(a.cfg.DataDir)
	if err != nil {
		return err
	}
	defer receipts.Close()

	sender := &tx.Sender{Chain: client, Receipts: receipts, Log: a.log}
	res, err := sender.Send(ctx, cfg.Key, signer, unsigned, tx.Transfer{
		From:   from.Hex(),
		To:     recipient.Hex(),
		Token:  "USDC",
		Amount: display,
	}, !noWait)
	if err != nil {
		return err
	}

	hash := res.Tx.Hash().Hex()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" Submitted "+hash))
	if cfg.ExplorerURL != "" {
		fmt.Fprintln(out, ui.KeyValue("Explorer", strings.TrimRight(cfg.ExplorerURL, "/")+"/tx/"+hash))
	}
	if res.Receipt != nil {
		status := ui.SuccessStyle.Render("success")
		if res.Receipt.Status == 0 {
			status = ui.ErrorStyle.Render("reverted")
		}
		fmt.Fprintln(out, ui.KeyValue("Status", status))
		fmt.Fprintln(out, ui.KeyValue("Block", res.Receipt.BlockNumber.String()))
	}
	return nil
}

// sendPolicy caps one transfer at send.max_per_tx Digital USD.
func (a *app) sendPolicy(decimals uint8) (tx.Policy, error) {
	policy := tx.Policy{MaxPerTxWei: new(big.Int)}
	if a.cfg.Send.MaxPerTx == "" {
		return policy, nil
	}
	limit, err := tx.ParseUnits(a.cfg.Send.MaxPerTx, decimals)
	if err != nil {
		return tx.Policy{}, fmt.Errorf("send.max_per_tx: %w", err)
	}
	policy.MaxPerTxToken = limit
	return policy, nil
}

func (a *app) runTransfers(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	receipts, err := tx.OpenReceiptStore(a.cfg.DataDir)
	if err != nil {
		return err
	}
	defer receipts.Close()

	list, err := receipts.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No transfers recorded.")
		return nil
	}
	for _, t := range list {
		status := ui.WarningStyle.Render("pending")
		if t.Mined() {
			status = ui.SuccessStyle.Render("mined")
			if *t.Status == 0 {
				status = ui.ErrorStyle.Render("reverted")
			}
		}
		fmt.Fprintf(out, "%s  %-9s %s  %s %s → %s  %s\n",
			t.CreatedAt.Local().Format("2006-01-02 15:04"), t.Chain, shortHash(t.TxHash),
			t.Amount, t.Token, shortHash(t.To), status)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
