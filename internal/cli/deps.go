package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yolodolo42/amera/internal/auth"
	"github.com/yolodolo42/amera/internal/chain"
	"github.com/yolodolo42/amera/internal/market"
	"github.com/yolodolo42/amera/internal/session"
)

func (a *app) authManager() (*auth.Manager, error) {
	m, err := auth.NewManager(a.cfg.DataDir, a.v)
	if err != nil {
		return nil, fmt.Errorf("failed to open auth store: %w", err)
	}
	return m, nil
}

func (a *app) marketClient() *market.Client {
	return market.NewClient(
		market.WithBaseURL(a.cfg.Market.BaseURL),
		market.WithTTL(a.cfg.Market.CacheTTL),
		market.WithMinInterval(a.cfg.Market.MinInterval),
		market.WithLogger(a.log),
	)
}

// resolveChain accepts a registry key ("base") or a chain ID ("8453", "0x2105").
func resolveChain(reg *chain.Registry, ref string) (*chain.ChainConfig, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if cfg, err := reg.Get(ref); err == nil {
		return cfg, nil
	}
	var (
		id  int64
		err error
	)
	if strings.HasPrefix(ref, "0x") {
		id, err = chain.ParseHexChainID(ref)
	} else {
		id, err = strconv.ParseInt(ref, 10, 64)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownChain, ref)
	}
	return reg.ByID(id)
}

// defaultChain is the --chain / config chain.
func (a *app) defaultChain(reg *chain.Registry) (*chain.ChainConfig, error) {
	return resolveChain(reg, a.cfg.Chain)
}

// storedAddress is the address the last session left behind, read from
// auth.json without touching the wallet or the network. demo is set for the
// demo identity.
func (a *app) storedAddress() (addr common.Address, demo bool, err error) {
	authMgr, err := a.authManager()
	if err != nil {
		return common.Address{}, false, err
	}
	store := authMgr.Store()

	if g := store.LoadGrant(); g != nil {
		if g.Demo {
			return common.HexToAddress(session.DemoAddress), true, nil
		}
		if len(g.Addresses) > 0 {
			return common.HexToAddress(g.Addresses[0]), false, nil
		}
	}
	ident, err := store.LoadIdentity()
	if err != nil {
		return common.Address{}, false, err
	}
	if ident != nil && common.IsHexAddress(ident.Address) {
		return common.HexToAddress(ident.Address), false, nil
	}
	return common.Address{}, false, session.ErrNotConnected
}

// ownerAddress resolves an --address style flag, falling back to the stored
// session.
func (a *app) ownerAddress(flag string) (common.Address, bool, error) {
	if flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, false, fmt.Errorf("invalid address: %s", flag)
		}
		return common.HexToAddress(flag), false, nil
	}
	addr, demo, err := a.storedAddress()
	if errors.Is(err, session.ErrNotConnected) {
		return common.Address{}, false, fmt.Errorf("no address given and no session: run 'amera session connect' or pass --address")
	}
	if err != nil {
		return common.Address{}, false, err
	}
	return addr, demo, nil
}
