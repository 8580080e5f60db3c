// Package cli is the amera command tree.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/yolodolo42/amera/internal/config"
	"github.com/yolodolo42/amera/internal/logging"
	"github.com/yolodolo42/amera/internal/wallet"
	"golang.org/x/term"
)

// app carries what every command needs once flags and config are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger

	stdin  io.Reader
	stderr io.Writer
	lines  *bufio.Reader

	// password reads a secret without echo; tests replace it.
	password func(prompt string) (string, error)
	// keyOpts and encrypter set the scrypt cost of new keys.
	keyOpts   []wallet.Option
	encrypter wallet.Encrypter

	// interactive reports whether forms and selectors may be shown.
	interactive func() bool
}

func newApp() *app {
	a := &app{
		v:         viper.New(),
		stdin:     os.Stdin,
		stderr:    os.Stderr,
		encrypter: wallet.DefaultEncrypter,
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
	a.password = a.readPassword
	return a
}

// Execute runs the amera command tree.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amera",
		Short: "Digital USD backend and operator CLI",
		Long: `amera runs the Digital USD API and gives operators a terminal view of
the same product: wallet sessions, balances, OTC quotes, market data, swaps
and vaults.

Every state-changing operation asks for confirmation or a wallet password.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.amera/config.yaml)")
	flags.String("chain", "ethereum", "Default chain to use")
	flags.String("data-dir", "", "Data directory (default is $HOME/.amera)")
	flags.String("log-level", "", "Log level: debug, info, warn, error, off")
	_ = a.v.BindPFlag("chain", flags.Lookup("chain"))
	_ = a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	cmd.AddCommand(
		newServeCmd(a),
		newWalletCmd(a),
		newSessionCmd(a),
		newPortfolioCmd(a),
		newOTCCmd(a),
		newMarketCmd(a),
		newSwapCmd(a),
		newVaultCmd(a),
		newSendCmd(a),
		newTransfersCmd(a),
		newCredentialsCmd(a),
	)
	return cmd
}

// load reads the config file, applies defaults and builds the logger.
func (a *app) load() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(config.DefaultDataDir())
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}
	if err := a.v.ReadInConfig(); err != nil {
		// a missing default config file is fine; a named one is not
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: a.stderr,
	})
	a.log.Debug().Str("config", a.v.ConfigFileUsed()).Str("data_dir", cfg.DataDir).Msg("config loaded")
	return nil
}

func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(a.stderr, prompt)
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr) // newline after password input
		if err != nil {
			return "", err
		}
		return string(password), nil
	}
	return a.readLine("")
}

// readLine reads one line from stdin, for piped input and confirmations.
func (a *app) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(a.stderr, prompt)
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// newPassword asks twice and enforces the minimum length.
func (a *app) newPassword(prompt string) (string, error) {
	password, err := a.password(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	confirm, err := a.password("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// confirm asks a yes/no question; anything but y/yes is no.
func (a *app) confirm(question string) (bool, error) {
	answer, err := a.readLine(question + " [y/N]: ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
