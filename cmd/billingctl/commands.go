package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	appinvoicing "github.com/wawire/RentCollectionApp-sub000/internal/application/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

func (c *cli) generateCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the monthly invoices of a billing period",
		Long: `Issues one invoice per active tenant for the period. Tenants already
invoiced for the period are skipped, so the command is safe to re-run.`,
		Example: `  billingctl generate
  billingctl generate --period 2024-03`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(period, c.app.Clock.Now())
			if err != nil {
				return err
			}
			result, err := c.app.Generation.GenerateMonthlyInvoices(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Billing period as YYYY-MM (default: current month)")
	return cmd
}

func (c *cli) lateFeesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "late-fee",
		Short: "Calculate or apply late fees",
	}

	var period string
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Issue late-fee invoices for the overdue invoices of a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parsePeriod(period, c.app.Clock.Now())
			if err != nil {
				return err
			}
			result, err := c.app.Generation.ApplyLateFees(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	apply.Flags().StringVar(&period, "period", "", "Billing period as YYYY-MM (default: current month)")

	var tenantID, invoiceID, paymentID, dueDate string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the late fee owed by a tenant, on an invoice, or for a payment",
		Example: `  billingctl late-fee show --tenant 6f1c...
  billingctl late-fee show --tenant 6f1c... --due-date 2024-03-05
  billingctl late-fee show --invoice 0b7e...
  billingctl late-fee show --payment 9a44...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *invoicing.LateFeeResult
				err    error
			)
			switch {
			case tenantID != "":
				id, perr := parseID("tenant", tenantID)
				if perr != nil {
					return perr
				}
				due, perr := parseOptionalDate(dueDate, c.app.Clock.Now().Location())
				if perr != nil {
					return perr
				}
				result, err = c.app.LateFees.CalculateForTenant(cmd.Context(), id, due)
			case invoiceID != "":
				id, perr := parseID("invoice", invoiceID)
				if perr != nil {
					return perr
				}
				result, err = c.app.LateFees.CalculateForInvoice(cmd.Context(), id)
			case paymentID != "":
				id, perr := parseID("payment", paymentID)
				if perr != nil {
					return perr
				}
				result, err = c.app.LateFees.CalculateForPayment(cmd.Context(), id)
			default:
				return fmt.Errorf("one of --tenant, --invoice or --payment is required")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), lateFeeView{LateFeeResult: result, Breakdown: result.Breakdown()})
		},
	}
	show.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	show.Flags().StringVar(&invoiceID, "invoice", "", "Invoice ID")
	show.Flags().StringVar(&paymentID, "payment", "", "Payment ID")
	show.Flags().StringVar(&dueDate, "due-date", "", "Due date as YYYY-MM-DD (tenant only; default: current period)")
	show.MarkFlagsMutuallyExclusive("tenant", "invoice", "payment")

	cmd.AddCommand(apply, show)
	return cmd
}

type lateFeeView struct {
	*invoicing.LateFeeResult
	Breakdown string `json:"breakdown"`
}

func (c *cli) allocateCmd() *cobra.Command {
	var invoiceID, amount, remark string
	cmd := &cobra.Command{
		Use:   "allocate <payment-id>",
		Short: "Apply a completed payment to an invoice, or oldest-first across open invoices",
		Example: `  billingctl allocate 9a44...
  billingctl allocate 9a44... --invoice 0b7e... --amount 2500`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			req := appinvoicing.AllocatePaymentRequest{PaymentID: paymentID, Remark: remark}
			if invoiceID != "" {
				id, err := parseID("invoice", invoiceID)
				if err != nil {
					return err
				}
				req.InvoiceID = &id
			}
			if amount != "" {
				amt, err := parseAmount(amount)
				if err != nil {
					return err
				}
				req.Amount = &amt
			}
			result, err := c.app.Allocation.AllocatePayment(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&invoiceID, "invoice", "", "Target invoice ID (default: FIFO across outstanding invoices)")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to apply to the target invoice (default: all unallocated funds)")
	cmd.Flags().StringVar(&remark, "remark", "", "Note stored on the allocation")
	return cmd
}

func (c *cli) reverseCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reverse <payment-id>",
		Short: "Remove every allocation of a payment and restore the affected invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			result, err := c.app.Allocation.ReverseAllocations(cmd.Context(), paymentID, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the allocations are reversed")
	return cmd
}

func (c *cli) confirmCmd() *cobra.Command {
	var reference string
	cmd := &cobra.Command{
		Use:   "confirm [payment-id]",
		Short: "Confirm a pending payment and allocate it oldest-first",
		Example: `  billingctl confirm 9a44...
  billingctl confirm --ref QKX81HY2ZP`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				result *appinvoicing.AllocationResult
				err    error
			)
			switch {
			case len(args) == 1 && reference != "":
				return fmt.Errorf("pass either a payment ID or --ref, not both")
			case len(args) == 1:
				paymentID, perr := parseID("payment", args[0])
				if perr != nil {
					return perr
				}
				result, err = c.app.Allocation.ConfirmAndAllocate(cmd.Context(), paymentID)
			case reference != "":
				result, err = c.app.Allocation.ConfirmByTransactionReference(cmd.Context(), reference)
			default:
				return fmt.Errorf("a payment ID or --ref is required")
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&reference, "ref", "", "Gateway transaction reference of the payment")
	return cmd
}

func (c *cli) rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <payment-id>",
		Short: "Reject a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := parseID("payment", args[0])
			if err != nil {
				return err
			}
			result, err := c.app.Allocation.RejectPayment(cmd.Context(), appinvoicing.RejectPaymentRequest{
				PaymentID: paymentID,
				Reason:    reason,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the payment is rejected")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (c *cli) recalcCmd() *cobra.Command {
	var tenantID, invoiceID, paymentID string
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Re-derive cached balances, statuses and unallocated amounts from allocations",
		Example: `  billingctl recalc
  billingctl recalc --tenant 6f1c...
  billingctl recalc --payment 9a44...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := recalcView{}
			switch {
			case tenantID != "":
				id, err := parseID("tenant", tenantID)
				if err != nil {
					return err
				}
				out.Scope = "tenant"
				if out.Changed, err = c.app.Recalculation.RecalculateForTenant(ctx, id); err != nil {
					return err
				}
			case invoiceID != "":
				id, err := parseID("invoice", invoiceID)
				if err != nil {
					return err
				}
				out.Scope = "invoice"
				if out.Changed, err = c.app.Recalculation.RecalculateForInvoice(ctx, id); err != nil {
					return err
				}
			case paymentID != "":
				id, err := parseID("payment", paymentID)
				if err != nil {
					return err
				}
				out.Scope = "payment"
				changed, err := c.app.Recalculation.RecalculatePayment(ctx, id)
				if err != nil {
					return err
				}
				if changed {
					out.Changed = 1
				}
			default:
				out.Scope = "all"
				var err error
				if out.Changed, err = c.app.Recalculation.RecalculateAll(ctx); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Only this tenant's invoices")
	cmd.Flags().StringVar(&invoiceID, "invoice", "", "Only this invoice")
	cmd.Flags().StringVar(&paymentID, "payment", "", "Only this payment's unallocated amount")
	cmd.MarkFlagsMutuallyExclusive("tenant", "invoice", "payment")
	return cmd
}

type recalcView struct {
	Scope   string `json:"scope"`
	Changed int    `json:"changed"`
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <tenant-id>",
		Short: "Show a tenant's outstanding balance computed from allocation facts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant", args[0])
			if err != nil {
				return err
			}
			balance, err := c.app.Recalculation.GetOutstandingBalanceForTenant(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balanceView{
				TenantID: tenantID,
				Balance:  balance,
				Currency: c.app.Config.Billing.Currency,
			})
		},
	}
}

type balanceView struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

func (c *cli) voidCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "void <invoice-id>",
		Short: "Void an invoice that has no allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceID, err := parseID("invoice", args[0])
			if err != nil {
				return err
			}
			inv, err := c.app.Recalculation.VoidInvoice(cmd.Context(), appinvoicing.VoidInvoiceRequest{
				InvoiceID: invoiceID,
				Reason:    reason,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), voidView{
				InvoiceID:     inv.ID,
				InvoiceNumber: inv.InvoiceNumber,
				Status:        inv.Status.String(),
				Reason:        inv.VoidReason,
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the invoice is voided")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

type voidView struct {
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
}

// parsePeriod reads "YYYY-MM", defaulting to the month of now
func parsePeriod(s string, now time.Time) (int, time.Month, error) {
	if strings.TrimSpace(s) == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

func parseOptionalDate(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID %q", kind, s)
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !amt.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", amt)
	}
	return amt, nil
}
