package cli

import (
	"fmt"
	"path/filepath"

	"github.com/qpss/middleware/internal/application/reconcile"
	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/config"
	"github.com/qpss/middleware/internal/infrastructure/holdingtank"
	"github.com/qpss/middleware/internal/infrastructure/quikpak"
	"github.com/qpss/middleware/internal/infrastructure/sage"
	"github.com/qpss/middleware/internal/infrastructure/shipstation"
	"go.uber.org/zap"
)

// gateways builds one client per configured account, domestic first
func gateways(cfg *config.Config, logger *zap.Logger) ([]integration.OrderGateway, error) {
	opts := shipstation.Options{
		RetryAttempts:     cfg.Settings.RetryAttempts,
		RetryDelay:        cfg.Settings.RetryDelay,
		Timeout:           cfg.Settings.RequestTimeout,
		RequestsPerMinute: cfg.Settings.RequestsPerMinute,
		PageSize:          cfg.Settings.PageSize,
		Logger:            logger,
	}

	accounts := []struct {
		account integration.Account
		cfg     config.AccountConfig
	}{
		{integration.AccountDomestic, cfg.ShipStation},
		{integration.AccountForeign, cfg.ShipStationCA},
	}

	var out []integration.OrderGateway
	for _, a := range accounts {
		if !a.cfg.Configured() {
			continue
		}
		client, err := shipstation.NewClient(shipstation.AccountContext{
			Account:   a.account,
			APIKey:    a.cfg.APIKey,
			APISecret: a.cfg.APISecret,
			BaseURL:   a.cfg.BaseURL,
			StoreID:   a.cfg.StoreID,
		}, opts)
		if err != nil {
			return nil, fmt.Errorf("%s account: %w", a.account.Label(), err)
		}
		out = append(out, client)
	}
	return out, nil
}

func accountLabels(gs []integration.OrderGateway) []string {
	labels := make([]string, 0, len(gs))
	for _, g := range gs {
		labels = append(labels, g.Account().Label())
	}
	return labels
}

// holdingTank opens the configured holding tank backend.
// The returned close func is never nil.
func holdingTank(cfg *config.Config, logger *zap.Logger) (integration.HoldingTank, func(), error) {
	switch cfg.Settings.HoldingTankBackend {
	case "sqlite":
		store, err := holdingtank.OpenSQLite(filepath.Join(cfg.Paths.QuikPAKPending, holdingtank.SQLiteFileName), logger)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := holdingtank.NewFileStore(cfg.Paths.QuikPAKPending)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() {}, nil
	}
}

// itemLookup opens the Sage 300 lookup when configured. A nil lookup means
// orders are submitted without items.
func itemLookup(cfg *config.Config, logger *zap.Logger) (integration.ItemLookup, func(), error) {
	if !cfg.Sage.Enabled() {
		return nil, func() {}, nil
	}
	lookup, err := sage.Open(cfg.Sage, logger)
	if err != nil {
		return nil, func() {}, err
	}
	return lookup, func() { _ = lookup.Close() }, nil
}

func inbox(cfg *config.Config) *quikpak.Inbox {
	return quikpak.NewInbox(quikpak.InboxConfig{
		Dir:          cfg.Paths.QuikPAKIn,
		ProcessedDir: cfg.Paths.QuikPAKInProcessed,
		ErrorDir:     cfg.Paths.QuikPAKInError,
	})
}

func emitter(cfg *config.Config) *quikpak.Emitter {
	from := cfg.ShipFrom
	return quikpak.NewEmitter(quikpak.EmitterConfig{
		Dir: cfg.Paths.QuikPAKOut,
		ShipFrom: quikpak.ShipFrom{
			AccountNo: from.AccountNo,
			Name:      from.Name,
			Addr1:     from.Addr1,
			Addr2:     from.Addr2,
			Addr3:     from.Addr3,
			Addr4:     from.Addr4,
			City:      from.City,
			State:     from.State,
			Zip:       from.Zip,
			Country:   from.Country,
			Contact:   from.Contact,
			Phone:     from.Phone,
		},
	})
}

// runDecider returns the prompter, or a fixed policy when either answer
// is given on the command line.
func runDecider(prompter *Prompter, lookupDown, held string) (reconcile.Decider, error) {
	if lookupDown == "" && held == "" {
		return prompter, nil
	}
	policy := reconcile.FixedDecider{Lookup: reconcile.LookupAbort, Held: reconcile.HeldSkip}
	if lookupDown != "" {
		d, err := reconcile.ParseLookupDecision(lookupDown)
		if err != nil {
			return nil, err
		}
		policy.Lookup = d
	}
	if held != "" {
		d, err := reconcile.ParseHeldDecision(held)
		if err != nil {
			return nil, err
		}
		policy.Held = d
	}
	return policy, nil
}
