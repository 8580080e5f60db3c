package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/auth"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/provider"
	"github.com/yolodolo42/amera/internal/session"
	"github.com/yolodolo42/amera/internal/ui"
)

const sessionTimeout = 2 * time.Minute

// cliSession is a session.Manager rebuilt from auth.json for one command.
type cliSession struct {
	mgr      *session.Manager
	store    *auth.Store
	registry *chain.Registry
	chains   *chain.Client
	wallet   *provider.Keystore // nil when the keystore is empty
}

func (s *cliSession) Close() {
	s.mgr.Close()
	if s.wallet != nil {
		s.wallet.Close()
	}
	s.chains.Close()
}

// openSession restores the previous grant: demo sessions come back as demo,
// remembered accounts are re-exposed without a password prompt.
func (a *app) openSession(ctx context.Context) (*cliSession, error) {
	authMgr, err := a.authManager()
	if err != nil {
		return nil, err
	}
	km, err := a.keystore()
	if err != nil {
		return nil, err
	}

	reg := chain.NewRegistry()
	home, err := a.defaultChain(reg)
	if err != nil {
		return nil, err
	}
	s := &cliSession{store: authMgr.Store(), registry: reg, chains: chain.NewClient(reg)}

	grant := s.store.LoadGrant()
	opts := provider.KeystoreOptions{
		Keys:    km,
		Chains:  s.chains,
		ChainID: home.ChainIDInt,
		Password: func(ctx context.Context) (string, error) {
			return a.password("Wallet password: ")
		},
		Logger: a.log,
	}
	if grant != nil && !grant.Demo {
		for _, addr := range grant.Addresses {
			opts.Authorized = append(opts.Authorized, common.HexToAddress(addr))
		}
		if grant.ChainID != 0 {
			opts.ChainID = grant.ChainID
		}
		opts.KnownChains = grant.Chains
	}

	var prov provider.Provider
	if len(km.ListAccounts()) > 0 {
		s.wallet = provider.NewKeystore(opts)
		prov = s.wallet
	}

	s.mgr, err = session.New(session.Options{
		Provider:       prov,
		Store:          s.store,
		Registry:       reg,
		Logger:         a.log,
		DemoFallback:   a.cfg.Session.DemoFallback,
		DefaultChainID: home.ChainIDInt,
	})
	if err != nil {
		s.chains.Close()
		return nil, err
	}

	switch {
	case grant != nil && grant.Demo:
		s.mgr.ConnectDemo()
		if grant.ChainID != 0 {
			_ = s.mgr.SwitchChain(ctx, grant.ChainID)
		}
	case grant != nil && len(grant.Addresses) > 0 && prov != nil:
		if _, err := s.mgr.Restore(ctx); err != nil {
			a.log.Warn().Err(err).Msg("could not restore wallet session")
		}
	}

	// an email identity with a linked address is connected without a wallet
	if snap := s.mgr.Snapshot(); !snap.Connected() && snap.Identity != nil && snap.Identity.Address != "" {
		id := snap.Identity
		if err := s.mgr.SetIdentity(id.Email, id.Name, id.Address, id.EncryptedSecret); err != nil {
			a.log.Warn().Err(err).Msg("could not restore linked address")
		}
	}
	return s, nil
}

// save records what the wallet has exposed so the next command can restore it.
func (s *cliSession) save(ctx context.Context) error {
	snap := s.mgr.Snapshot()
	if !snap.Connected() {
		return s.store.ClearGrant()
	}
	g := auth.WalletGrant{Demo: snap.IsMock}
	if snap.ChainID != nil {
		g.ChainID = *snap.ChainID
	}
	if !snap.IsMock && s.wallet != nil {
		accounts, err := s.wallet.Accounts(ctx)
		if err != nil {
			return err
		}
		for _, addr := range accounts {
			g.Addresses = append(g.Addresses, addr.Hex())
		}
		g.Chains = s.wallet.KnownChains()
	}
	if !g.Demo && len(g.Addresses) == 0 {
		// linked email address; auth.json already has it in the identity
		return s.store.ClearGrant()
	}
	return s.store.SaveGrant(g)
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Connect a wallet and manage the signed-in identity",
	}

	connect := &cobra.Command{
		Use:   "connect",
		Short: "Connect the local wallet",
		Long: `Ask the local keystore wallet for account access. The wallet prompts
for its password. When no wallet is available and demo fallback is enabled,
the demo identity is used instead.`,
		RunE: a.runSessionConnect,
	}
	connect.Flags().Bool("demo", false, "Use the demo wallet without touching the keystore")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE:  a.runSessionStatus,
	}
	status.Flags().Bool("json", false, "Print the session as JSON")

	switchCmd := &cobra.Command{
		Use:   "switch [chain]",
		Short: "Switch the wallet to another network",
		Long: `Switch the connected wallet to a chain key (base) or ID (8453, 0x2105).
Without an argument an interactive selector is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runSessionSwitch,
	}

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the wallet",
		RunE:  a.runSessionDisconnect,
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an email identity",
		RunE:  a.runSessionLogin,
	}
	login.Flags().String("email", "", "Email address")
	login.Flags().String("name", "", "Display name")
	login.Flags().String("address", "", "Link an existing wallet address")
	login.Flags().Bool("create-wallet", false, "Provision a new encrypted wallet for this identity")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the wallet session",
		RunE:  a.runSessionLogout,
	}

	cmd.AddCommand(connect, status, switchCmd, disconnect, login, logout)
	return cmd
}

func (a *app) runSessionConnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	if demo, _ := cmd.Flags().GetBool("demo"); demo {
		s.mgr.ConnectDemo()
	} else {
		res := s.mgr.Connect(ctx)
		switch {
		case res.OK():
		case res.Demo:
			fmt.Fprintln(out, ui.WarningStyle.Render(fmt.Sprintf("Wallet unavailable (%s), using the demo wallet", res.Outcome)))
		default:
			return fmt.Errorf("connect: %s: %w", res.Outcome, res.Err)
		}
	}

	if err := s.save(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	printSnapshot(out, s.registry, s.mgr.Snapshot())
	return nil
}

func (a *app) runSessionStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.mgr.Snapshot()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(cmd.OutOrStdout(), s.registry, snap)
	return nil
}

func (a *app) runSessionSwitch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	snap := s.mgr.Snapshot()
	if !snap.Connected() {
		return session.ErrNotConnected
	}

	var ref string
	switch {
	case len(args) == 1:
		ref = args[0]
	case a.interactive():
		ref, err = ui.RunSelector("Switch network", chainItems(s.registry, snap.ChainID))
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("chain argument required when not running in a terminal")
	}

	target, err := resolveChain(s.registry, ref)
	if err != nil {
		return err
	}
	if err := s.mgr.SwitchChain(ctx, target.ChainIDInt); err != nil {
		return err
	}
	if err := s.save(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(ui.SymbolCheck+" Switched to "+target.Name))
	return nil
}

// chainItems lists product chains first, then the rest of the registry.
func chainItems(reg *chain.Registry, current *int64) []ui.SelectorItem {
	var primary, rest []ui.SelectorItem
	for _, key := range reg.List() {
		cfg, err := reg.Get(key)
		if err != nil {
			continue
		}
		item := ui.SelectorItem{
			ID:          key,
			Label:       cfg.Name,
			Description: cfg.NativeCurrency,
			Current:     current != nil && *current == cfg.ChainIDInt,
		}
		if chain.Supported(cfg.ChainIDInt) {
			primary = append(primary, item)
		} else {
			rest = append(rest, item)
		}
	}
	return append(primary, rest...)
}

func (a *app) runSessionDisconnect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	s.mgr.Disconnect()
	if s.wallet != nil {
		s.wallet.Lock()
	}
	if err := s.store.ClearGrant(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wallet disconnected.")
	return nil
}

func (a *app) runSessionLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	address, _ := cmd.Flags().GetString("address")
	createWallet, _ := cmd.Flags().GetBool("create-wallet")

	if email == "" && a.interactive() {
		values, err := ui.RunForm("Sign in", []ui.Field{
			{Key: "email", Label: "Email", Required: true},
			{Key: "name", Label: "Name", Value: name},
		})
		if err != nil {
			return err
		}
		email, name = values["email"], values["name"]
	}
	if email == "" {
		return fmt.Errorf("--email is required")
	}
	if address != "" && createWallet {
		return fmt.Errorf("--address and --create-wallet are mutually exclusive")
	}

	var secret string
	if createWallet {
		password, err := a.newPassword("Password for the new wallet: ")
		if err != nil {
			return err
		}
		provisioned, err := a.encrypter.Provision(password)
		if err != nil {
			return err
		}
		address, secret = provisioned.Address, provisioned.EncryptedSecret
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.mgr.SetIdentity(email, name, address, secret); err != nil {
		return err
	}
	if err := s.save(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(ui.SymbolCheck+" Signed in as "+s.mgr.DisplayName()))
	if address != "" {
		fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValue("Address", common.HexToAddress(address).Hex()))
	}
	return nil
}

func (a *app) runSessionLogout(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), sessionTimeout)
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.mgr.Logout(); err != nil {
		return err
	}
	if s.wallet != nil {
		s.wallet.Lock()
	}
	if err := s.store.ClearGrant(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func printSnapshot(out io.Writer, reg *chain.Registry, s session.Snapshot) {
	state := "disconnected"
	if s.Connected() {
		state = ui.SuccessStyle.Render(ui.SymbolFilled + " connected")
	}
	if s.IsMock {
		state += ui.WarningStyle.Render(" (demo)")
	}
	fmt.Fprintln(out, ui.KeyValue("Wallet", state))

	if s.Address != nil {
		fmt.Fprintln(out, ui.KeyValue("Address", s.Address.Hex()))
	}
	if s.ChainID != nil {
		name := strconv.FormatInt(*s.ChainID, 10)
		symbol := "ETH"
		if cfg, err := reg.ByID(*s.ChainID); err == nil {
			name, symbol = cfg.Name, cfg.NativeCurrency
		}
		fmt.Fprintln(out, ui.KeyValue("Network", name))
		fmt.Fprintln(out, ui.KeyValue("Balance", s.Balance+" "+symbol))
	}
	if s.Identity != nil {
		who := s.Identity.Name
		switch {
		case s.Identity.Email != "" && who != "":
			who = fmt.Sprintf("%s <%s>", who, s.Identity.Email)
		case s.Identity.Email != "":
			who = s.Identity.Email
		}
		fmt.Fprintln(out, ui.KeyValue("Signed in", who))
	} else if !s.Authenticated() {
		fmt.Fprintln(out, ui.KeyValue("Signed in", "no"))
	}
}

