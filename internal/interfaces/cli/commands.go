package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/qpss/middleware/internal/application/reconcile"
	"github.com/qpss/middleware/internal/domain/integration"
	"github.com/qpss/middleware/internal/infrastructure/ledger"
	"github.com/qpss/middleware/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *App) flow1Command() *cobra.Command {
	var lookupDown, held string
	cmd := &cobra.Command{
		Use:   "flow1",
		Short: "Submit QuikPAK order files to ShipStation",
		Long: `Submit QuikPAK order files to ShipStation.

Setting --lookup-down or --held runs unattended: no question is asked and
an unset decision takes its safe answer (abort, skip).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			decider, err := runDecider(NewPrompter(a.in, a.out), lookupDown, held)
			if err != nil {
				return err
			}
			ctx, err := a.setup(cmd.Context(), reconcile.FlowInbound)
			if err != nil {
				return err
			}
			log := logger.L(ctx).Zap()
			started := a.now()
			cfg := a.cfg

			gs, err := gateways(cfg, log)
			if err != nil {
				return err
			}
			log.Info("Configured accounts", zap.Strings("accounts", accountLabels(gs)))

			lookup, closeLookup, err := itemLookup(cfg, log)
			if err != nil {
				return err
			}
			defer closeLookup()

			tank, closeTank, err := holdingTank(cfg, log)
			if err != nil {
				return err
			}
			defer closeTank()

			svc := reconcile.NewInboundService(inbox(cfg), lookup, gs, tank, decider,
				reconcile.InboundOptions{
					DryRun:         a.dryRun,
					ForeignCountry: cfg.Settings.ForeignCountry,
					Now:            a.now,
				})
			summary, runErr := svc.Run(ctx)
			var counts map[string]int
			if summary != nil {
				counts = summary.Counts()
				if !summary.Aborted {
					a.printf("SUMMARY: %s\n", summary)
				}
			}
			a.finish(ctx, counts, started, runErr)
			return runErr
		},
	}
	cmd.Flags().StringVar(&lookupDown, "lookup-down", "", "answer without prompting when Sage 300 is unreachable: continue or abort")
	cmd.Flags().StringVar(&held, "held", "", "answer without prompting for orders held without items: push or skip")
	return cmd
}

func (a *App) flow2Command() *cobra.Command {
	return &cobra.Command{
		Use:   "flow2",
		Short: "Poll ShipStation for shipments and write QuikPAK confirmation files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := a.setup(cmd.Context(), reconcile.FlowOutbound)
			if err != nil {
				return err
			}
			log := logger.L(ctx).Zap()
			started := a.now()
			cfg := a.cfg
			if cfg.Paths.QuikPAKOut == "" && !a.dryRun {
				return fmt.Errorf("missing paths.quikpak_out in config")
			}

			gs, err := gateways(cfg, log)
			if err != nil {
				return err
			}
			log.Info("Polling accounts", zap.Strings("accounts", accountLabels(gs)))

			tank, closeTank, err := holdingTank(cfg, log)
			if err != nil {
				return err
			}
			defer closeTank()

			svc := reconcile.NewOutboundService(gs, tank, emitter(cfg), ledger.NewFileStore(cfg.Settings.Flow2StateFile),
				reconcile.OutboundOptions{
					DryRun:            a.dryRun,
					FirstPollLookback: cfg.Settings.FirstPollLookback,
					Now:               a.now,
				})
			summary, runErr := svc.Run(ctx)
			var counts map[string]int
			if summary != nil {
				counts = summary.Counts()
				a.printf("SUMMARY: %s\n", summary)
			}
			a.finish(ctx, counts, started, runErr)
			return runErr
		},
	}
}

func (a *App) listStoresCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "list-stores",
		Short: "List the ShipStation stores of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acct, ok := integration.ParseAccount(account)
			if !ok {
				return fmt.Errorf("unknown account %q, use us or ca", account)
			}
			ctx, err := a.setup(cmd.Context(), "list-stores")
			if err != nil {
				return err
			}
			log := logger.L(ctx).Zap()
			gs, err := gateways(a.cfg, log)
			if err != nil {
				return err
			}
			stores, err := reconcile.NewStoreService(gs).ListStores(ctx, acct)
			if err != nil {
				return err
			}

			a.printf("\nShipStation %s stores:\n", acct.Label())
			table := tablewriter.NewTable(a.out)
			table.Header("Store ID", "Name", "Marketplace", "Active")
			for _, s := range stores {
				if err := table.Append(strconv.Itoa(s.StoreID), s.StoreName, s.MarketplaceName, strconv.FormatBool(s.Active)); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			a.printf("\nSet store_id under [%s] in config.toml to scope orders to a store.\n", sectionName(acct))
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "us", "account to list: us or ca")
	return cmd
}

func (a *App) cleanupPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-pending DAYS",
		Short: "Delete holding records older than DAYS that never shipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || days <= 0 {
				return fmt.Errorf("DAYS must be a positive integer, got %q", args[0])
			}
			ctx, err := a.setup(cmd.Context(), reconcile.FlowCleanup)
			if err != nil {
				return err
			}
			log := logger.L(ctx).Zap()
			tank, closeTank, err := holdingTank(a.cfg, log)
			if err != nil {
				return err
			}
			defer closeTank()

			result, err := reconcile.NewCleanupService(tank, NewPrompter(a.in, a.out)).Run(ctx, days)
			if err != nil {
				return err
			}
			switch {
			case len(result.Stale) == 0:
				a.printf("\nNo pending records older than %d day(s). Nothing to clean up.\n", days)
			case result.Confirmed:
				a.printf("\n  Deleted %d of %d record(s).\n", result.Deleted, len(result.Stale))
			}
			return nil
		},
	}
}

func sectionName(acct integration.Account) string {
	if acct == integration.AccountForeign {
		return "shipstation_ca"
	}
	return "shipstation"
}
