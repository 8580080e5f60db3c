package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/auth"
	"github.com/yolodolo42/amera/internal/ui"
)

func newCredentialsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage upstream partner credentials",
		Long: `Store Banxa partner credentials in auth.json. Environment variables
(BANXA_PARTNER_ID, BANXA_API_KEY, BANXA_SECRET) and the config file take
precedence over stored values.`,
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Store Banxa credentials",
		RunE:  a.runCredentialsSet,
	}
	set.Flags().String("partner-id", "", "Banxa partner ID")
	set.Flags().String("api-key", "", "Banxa API key")
	set.Flags().String("secret", "", "Banxa signing secret (prompted when omitted)")
	set.Flags().String("api-url", "", "Banxa API base URL")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved Banxa credentials (masked)",
		RunE:  a.runCredentialsShow,
	}

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove stored Banxa credentials",
		RunE:  a.runCredentialsRemove,
	}

	cmd.AddCommand(set, show, remove)
	return cmd
}

func (a *app) runCredentialsSet(cmd *cobra.Command, args []string) error {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	cred := auth.Credential{
		PartnerID: get("partner-id"),
		APIKey:    get("api-key"),
		Secret:    get("secret"),
		APIURL:    get("api-url"),
	}
	if cred.Secret == "" && cred.APIKey != "" {
		secret, err := a.password("Banxa secret: ")
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		cred.Secret = strings.TrimSpace(secret)
	}
	if cred.PartnerID == "" || cred.APIKey == "" || cred.Secret == "" {
		return fmt.Errorf("--partner-id, --api-key and a secret are required")
	}

	m, err := a.authManager()
	if err != nil {
		return err
	}
	if err := m.SetBanxa(cred); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render(ui.SymbolCheck+" Banxa credentials saved"))
	return nil
}

func (a *app) runCredentialsShow(cmd *cobra.Command, args []string) error {
	m, err := a.authManager()
	if err != nil {
		return err
	}
	creds := m.Banxa()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.KeyValue("API URL", creds.APIURL))
	fmt.Fprintln(out, ui.KeyValue("Partner ID", orUnset(creds.PartnerID)))
	fmt.Fprintln(out, ui.KeyValue("API key", orUnset(mask(creds.APIKey))))
	fmt.Fprintln(out, ui.KeyValue("Secret", orUnset(mask(creds.Secret))))
	if !creds.Complete() {
		fmt.Fprintln(out, ui.WarningStyle.Render("\nIncomplete: on-ramp orders will fail."))
	}
	return nil
}

func (a *app) runCredentialsRemove(cmd *cobra.Command, args []string) error {
	m, err := a.authManager()
	if err != nil {
		return err
	}
	store := m.Store()
	if _, err := store.GetCredential(auth.ProviderBanxa); errors.Is(err, auth.ErrNoCredential) {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored Banxa credentials.")
		return nil
	}
	if err := store.RemoveCredential(auth.ProviderBanxa); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Banxa credentials removed.")
	return nil
}

// mask keeps the last four characters.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("•", len(s))
	}
	return strings.Repeat("•", 8) + s[len(s)-4:]
}

func orUnset(s string) string {
	if s == "" {
		return ui.SelectorDim.Render("(not set)")
	}
	return s
}
