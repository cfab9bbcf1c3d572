package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/qpss/middleware/internal/application/reconcile"
	"github.com/qpss/middleware/internal/domain/integration"
)

// errNoAnswer is returned when input ends before a valid answer
var errNoAnswer = errors.New("no answer on input")

// Prompter asks the operator on a terminal. It answers the run decisions
// and the cleanup confirmation.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

var (
	_ reconcile.Decider   = (*Prompter)(nil)
	_ reconcile.Confirmer = (*Prompter)(nil)
)

// NewPrompter creates a Prompter
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// LookupUnavailable offers to continue without items or abort
func (p *Prompter) LookupUnavailable(ctx context.Context, cause error) (reconcile.LookupDecision, error) {
	fmt.Fprintf(p.out, "\n*** Sage 300 database connection failed ***\n    Error: %v\n\n", cause)
	choice, err := p.choose(ctx, "    [C]ontinue without items for all orders, or [A]bort? ", "C", "A")
	if err != nil {
		return reconcile.LookupAbort, err
	}
	if choice == "A" {
		fmt.Fprintln(p.out, "Aborted.")
		return reconcile.LookupAbort, nil
	}
	return reconcile.LookupContinue, nil
}

// HeldOrders lists the held orders and asks for one decision for all of them
func (p *Prompter) HeldOrders(ctx context.Context, held []reconcile.HeldOrder) (reconcile.HeldDecision, error) {
	fmt.Fprintf(p.out, "\n%d order(s) had NO ITEMS from Sage 300:\n", len(held))
	table := tablewriter.NewTable(p.out)
	table.Header("Shipment ID", "Order", "Reason")
	for _, h := range held {
		if err := table.Append(h.ShipmentID(), h.Record.Header.OrderNo, h.Reason); err != nil {
			return reconcile.HeldSkip, err
		}
	}
	if err := table.Render(); err != nil {
		return reconcile.HeldSkip, err
	}

	choice, err := p.choose(ctx, "    [P]ush all without items, or [S]kip all (leave in QuikPAKIN for retry)? ", "P", "S")
	if err != nil {
		return reconcile.HeldSkip, err
	}
	if choice == "P" {
		fmt.Fprintf(p.out, "\n  Pushing %d order(s) without items.\n\n", len(held))
		return reconcile.HeldPush, nil
	}
	fmt.Fprintf(p.out, "\n  Skipped %d order(s). Files left in QuikPAKIN.\n\n", len(held))
	return reconcile.HeldSkip, nil
}

// ConfirmCleanup lists stale holding records and asks before deleting them
func (p *Prompter) ConfirmCleanup(ctx context.Context, stale []integration.StaleRecord) (bool, error) {
	if err := renderStale(p.out, stale); err != nil {
		return false, err
	}
	choice, err := p.choose(ctx, fmt.Sprintf("  Delete all %d file(s)? [Y]es or [N]o? ", len(stale)), "Y", "N")
	if err != nil {
		return false, err
	}
	if choice == "N" {
		fmt.Fprintln(p.out, "  Cancelled. No files deleted.")
		return false, nil
	}
	return true, nil
}

// choose repeats the question until one of the options is entered
func (p *Prompter) choose(ctx context.Context, question string, options ...string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(p.out, question)
		line, err := p.in.ReadString('\n')
		answer := strings.ToUpper(strings.TrimSpace(line))
		for _, o := range options {
			if answer == o {
				return o, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errNoAnswer
			}
			return "", err
		}
		fmt.Fprintf(p.out, "    Please enter %s.\n", strings.Join(options, " or "))
	}
}

func renderStale(w io.Writer, stale []integration.StaleRecord) error {
	fmt.Fprintf(w, "\n%d pending record(s) found:\n", len(stale))
	table := tablewriter.NewTable(w)
	table.Header("Shipment ID", "Order", "Age")
	for _, s := range stale {
		if err := table.Append(s.ShipmentID, s.OrderNumber, fmt.Sprintf("%dd", s.AgeDays())); err != nil {
			return err
		}
	}
	return table.Render()
}
