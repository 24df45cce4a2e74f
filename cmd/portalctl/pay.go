package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"student-portal/errors"
	"student-portal/models"
	"student-portal/services"
	"student-portal/services/payment"
	"student-portal/session"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func headsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "heads",
		Short: "List the payment heads configured on the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			heads, err := e.app.Heads.PaymentHeads(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tUNIT PRICE")
			for _, h := range heads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.ID, h.Name, h.Category, e.app.Money.Format(h.UnitPrice))
			}
			return tw.Flush()
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

func payCmd(e *env) *cobra.Command {
	var appType, amount string
	var gatewayID int
	cmd := &cobra.Command{
		Use:   "pay <applicationId>",
		Short: "Pay for an application through the gateway",
		Long: `Initialize a payment and follow the gateway session.

Paste each URL the browser lands on; type "cancel" to abandon the payment
or "check" to verify a pending payment now. The session ends on a success,
failure or cancel page.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			input := payment.InitializeInput{
				ApplicationID: args[0],
				Type:          models.ParseApplicationType(appType),
				TotalAmount:   amt,
				GatewayID:     gatewayID,
			}
			if p, _ := session.LoadProfile(ctx, e.app.Store); p != nil {
				input.Depositor = p.Reg
			}
			if input.NeedsRecord() {
				rec, err := e.app.Client.Application(ctx, input.Type, input.ApplicationID)
				switch {
				case err != nil && errors.IsKind(err, errors.SessionExpired):
					return err
				case err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "could not load application %s: %v\n", input.ApplicationID, err)
				default:
					input.ApplyRecord(rec)
				}
			}

			res, err := e.app.Initializer.Initialize(ctx, input)
			if err != nil {
				if instr, ok := payment.InstructionsOf(err); ok {
					printInstructions(out, *instr)
				}
				return err
			}

			fmt.Fprintf(out, "Open this page to pay %s (PSID %s):\n  %s\n\n", e.app.Money.Format(res.Amount), res.PSID, res.RedirectURL)
			s := e.app.Driver.Start(ctx, res.RedirectURL, input.ApplicationID)
			wait := e.cfg.VerifyDelay * time.Duration(e.cfg.MaxPolls+1)
			snap := follow(ctx, cmd.InOrStdin(), s, wait)
			printSnapshot(out, snap)
			if snap.State == payment.StatePendingVerification {
				fmt.Fprintf(out, "The gateway has not confirmed yet. Run: portalctl status %s\n", input.ApplicationID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&appType, "type", "t", "", "Application type (e.g. CERTIFICATE, TRANSCRIPT)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Total amount; looked up from the application when omitted")
	cmd.Flags().IntVarP(&gatewayID, "gateway", "g", 0, "Gateway id; discovered when omitted")
	cmd.MarkFlagRequired("type")

	return cmd
}

// follow feeds lines from in to the gateway session until it finishes. When
// in runs dry before the gateway reported anything the payment is cancelled;
// a pending verification is waited for at most wait.
func follow(ctx context.Context, in io.Reader, s *payment.GatewaySession, wait time.Duration) payment.SessionSnapshot {
	eof := make(chan struct{})
	go func() {
		defer close(eof)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
				continue
			case strings.EqualFold(line, "cancel"), strings.EqualFold(line, "back"):
				s.Cancel()
			case strings.EqualFold(line, "check"):
				s.Recheck(ctx)
			default:
				s.Navigate(line)
			}
			if s.State().Terminal() {
				return
			}
		}
	}()

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Cancel()
	case <-eof:
		if s.State() == payment.StateLoading {
			s.Cancel()
		}
		select {
		case <-s.Done():
		case <-ctx.Done():
			s.Cancel()
		case <-time.After(wait):
		}
	}
	return s.Snapshot()
}

func printSnapshot(out io.Writer, snap payment.SessionSnapshot) {
	fmt.Fprintf(out, "Payment session %s: %s\n", snap.ID, snap.State)
	if v := snap.Verification; v != nil {
		printVerification(out, *v)
	}
	if snap.Error != "" {
		fmt.Fprintf(out, "  Error:        %s\n", snap.Error)
	}
}

func printVerification(out io.Writer, v models.VerificationResult) {
	fmt.Fprintf(out, "  Status:       %s\n", v.Status)
	if v.TransactionID != "" {
		fmt.Fprintf(out, "  Transaction:  %s\n", v.TransactionID)
	}
	if v.BankTransactionID != "" {
		fmt.Fprintf(out, "  Bank ref:     %s\n", v.BankTransactionID)
	}
	if v.CardType != "" {
		fmt.Fprintf(out, "  Paid with:    %s %s\n", v.CardBrand, v.CardType)
	}
}

func printInstructions(out io.Writer, instr models.ManualInstructions) {
	fmt.Fprintf(out, "Pay manually: %s for application %s (PSID %s, reference %s)\n",
		instr.FormattedAmount, instr.ApplicationID, instr.PSID, instr.Reference)
	for i, step := range instr.Steps {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
}

func statusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status <applicationId>",
		Short: "Check the payment status of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := e.app.Verifier.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Application %s\n", res.ApplicationID)
			printVerification(cmd.OutOrStdout(), *res)
			return nil
		},
	}
}

func instructionsCmd(e *env) *cobra.Command {
	var appType, amount, outPath string
	cmd := &cobra.Command{
		Use:   "instructions <applicationId>",
		Short: "Write the manual payment slip as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = fmt.Sprintf("payment-%s.pdf", args[0])
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()

			instr := e.app.Money.Instructions(args[0], models.ParseApplicationType(appType), amt)
			if err := services.WriteInstructionsPDF(f, instr, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&appType, "type", "t", "", "Application type")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to deposit")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default payment-<id>.pdf)")
	cmd.MarkFlagRequired("type")

	return cmd
}
