package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/amera/internal/api"
	"github.com/yolodolo42/amera/internal/onramp"
	"github.com/yolodolo42/amera/internal/otc"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the Digital USD API: Banxa on-ramp pass-through, OTC desk,
vault and swap quotes, and cached market data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, cleanup, err := a.apiHandler()
			if err != nil {
				return err
			}
			defer cleanup()

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           handler,
				ReadTimeout:       a.cfg.Server.ReadTimeout,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      a.cfg.Server.WriteTimeout,
			}
			return api.Serve(ctx, srv, a.log)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default :8080)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// apiHandler wires the router from config. The returned cleanup closes the
// quote store.
func (a *app) apiHandler() (http.Handler, func(), error) {
	authMgr, err := a.authManager()
	if err != nil {
		return nil, nil, err
	}
	creds := authMgr.Banxa()
	if !creds.Complete() {
		a.log.Warn().Msg("banxa credentials incomplete, on-ramp calls will be rejected upstream")
	}
	ramp := onramp.NewClient(onramp.Config{
		BaseURL:   creds.APIURL,
		PartnerID: creds.PartnerID,
		APIKey:    creds.APIKey,
		Secret:    creds.Secret,
	}, onramp.WithLogger(a.log))

	store, err := otc.OpenStore(a.cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open quote store: %w", err)
	}

	handler := api.NewRouter(api.Deps{
		OnRamp:      ramp,
		OTC:         otc.NewService(store, a.log),
		Market:      a.marketClient(),
		Log:         a.log,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	})
	cleanup := func() {
		if err := store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close quote store")
		}
	}
	return handler, cleanup, nil
}
