package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/ui"
	"github.com/yolodolo42/amera/internal/wallet"
)

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage wallets and accounts",
		Long:  `Create, import, and manage Ethereum accounts securely.`,
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		RunE:  a.runWalletCreate,
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from private key",
		RunE:  a.runWalletImport,
	}
	importCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List all wallets",
		RunE:  a.runWalletList,
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a private key into keystore JSON",
		Long: `Encrypt a raw private key under a password and print the keystore (v3)
JSON. Nothing is written to the keystore directory.`,
		RunE: a.runWalletEncrypt,
	}
	encrypt.Flags().String("key", "", "Private key (hex); prompted when omitted")

	decrypt := &cobra.Command{
		Use:   "decrypt <keystore-file>",
		Short: "Recover the private key from keystore JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runWalletDecrypt,
	}

	export := &cobra.Command{
		Use:   "export <address>",
		Short: "Export an account's keystore JSON under a new password",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runWalletExport,
	}

	sign := &cobra.Command{
		Use:   "sign <address> <message>",
		Short: "Sign a message to prove control of an account",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runWalletSign,
	}

	verify := &cobra.Command{
		Use:   "verify <address> <message> <signature>",
		Short: "Check a personal_sign signature",
		Args:  cobra.ExactArgs(3),
		RunE:  a.runWalletVerify,
	}

	cmd.AddCommand(create, importCmd, list, encrypt, decrypt, export, sign, verify)
	return cmd
}

func (a *app) keystore() (*wallet.KeystoreManager, error) {
	km, err := wallet.NewKeystoreManager(a.cfg.DataDir, a.keyOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	return km, nil
}

func (a *app) runWalletCreate(cmd *cobra.Command, args []string) error {
	km, err := a.keystore()
	if err != nil {
		return err
	}

	password, err := a.newPassword("Enter password for new wallet: ")
	if err != nil {
		return err
	}

	account, err := km.CreateAccount(password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	a.log.Info().Str("address", account.Address.Hex()).Msg("wallet created")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" Wallet created"))
	fmt.Fprintln(out, ui.KeyValue("Address", account.Address.Hex()))
	fmt.Fprintln(out, ui.KeyValue("Keystore", account.URL.Path))
	fmt.Fprintln(out, ui.WarningStyle.Render("\nBack up your keystore file and remember your password!"))
	return nil
}

func (a *app) readKeyFlag(cmd *cobra.Command) (string, error) {
	privateKey, _ := cmd.Flags().GetString("key")
	if privateKey == "" {
		input, err := a.password("Enter private key (hex): ")
		if err != nil {
			return "", fmt.Errorf("failed to read private key: %w", err)
		}
		privateKey = strings.TrimSpace(input)
	}
	if privateKey == "" {
		return "", fmt.Errorf("private key is required")
	}
	return privateKey, nil
}

func (a *app) runWalletImport(cmd *cobra.Command, args []string) error {
	privateKey, err := a.readKeyFlag(cmd)
	if err != nil {
		return err
	}

	km, err := a.keystore()
	if err != nil {
		return err
	}

	password, err := a.newPassword("Enter password to encrypt wallet: ")
	if err != nil {
		return err
	}

	account, err := km.ImportKey(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}
	a.log.Info().Str("address", account.Address.Hex()).Msg("wallet imported")

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" Wallet imported"))
	fmt.Fprintln(out, ui.KeyValue("Address", account.Address.Hex()))
	fmt.Fprintln(out, ui.KeyValue("Keystore", account.URL.Path))
	return nil
}

func (a *app) runWalletList(cmd *cobra.Command, args []string) error {
	km, err := a.keystore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	accounts := km.ListAccounts()
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No wallets found.")
		fmt.Fprintln(out, "Use 'amera wallet create' to create a new wallet.")
		return nil
	}

	fmt.Fprintf(out, "Found %d wallet(s):\n\n", len(accounts))
	for i, acc := range accounts {
		fmt.Fprintf(out, "%d. %s\n", i+1, acc.Address.Hex())
	}
	return nil
}

func (a *app) runWalletEncrypt(cmd *cobra.Command, args []string) error {
	privateKey, err := a.readKeyFlag(cmd)
	if err != nil {
		return err
	}
	password, err := a.newPassword("Encryption password: ")
	if err != nil {
		return err
	}
	blob, err := a.encrypter.Encrypt(privateKey, password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), blob)
	return nil
}

func (a *app) runWalletDecrypt(cmd *cobra.Command, args []string) error {
	blob, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read keystore file: %w", err)
	}
	password, err := a.password("Keystore password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	key, err := wallet.DecryptPrivateKey(string(blob), password)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, ui.WarningStyle.Render("Anyone with this key controls the account."))
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func (a *app) runWalletExport(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address: %s", args[0])
	}
	km, err := a.keystore()
	if err != nil {
		return err
	}
	password, err := a.password("Current password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	newPassword, err := a.newPassword("Export password: ")
	if err != nil {
		return err
	}
	blob, err := km.Export(common.HexToAddress(args[0]), password, newPassword)
	if err != nil {
		return fmt.Errorf("failed to export account: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(blob))
	return nil
}

func (a *app) runWalletSign(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address: %s", args[0])
	}
	km, err := a.keystore()
	if err != nil {
		return err
	}
	password, err := a.password("Wallet password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	signer, err := km.GetSigner(common.HexToAddress(args[0]), password)
	if err != nil {
		return err
	}
	defer signer.Lock()

	sig, err := signer.SignMessage([]byte(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(sig))
	return nil
}

func (a *app) runWalletVerify(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid address: %s", args[0])
	}
	sig, err := hexutil.Decode(args[2])
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	ok, err := wallet.VerifyMessage(common.HexToAddress(args[0]), []byte(args[1]), sig)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, ui.ErrorStyle.Render(ui.SymbolCross+" Signature does not match "+args[0]))
		return fmt.Errorf("signature mismatch")
	}
	fmt.Fprintln(out, ui.SuccessStyle.Render(ui.SymbolCheck+" Signed by "+common.HexToAddress(args[0]).Hex()))
	return nil
}
