package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var linkPublicToken string

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a bank account through the aggregator",
	Long: `Start the aggregator's hosted account-linking flow.

Finchat requests a link token and prints the hosted link URL. Complete the
flow in your browser, then paste the public token it shows. Leave the prompt
empty to cancel; nothing is exchanged in that case.

Examples:
  finchat link
  finchat link --public-token public-sandbox-1234`,
	Args: cobra.NoArgs,
	RunE: runLink,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List linked bank accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccounts,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the API is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	linkCmd.Flags().StringVar(&linkPublicToken, "public-token", "", "public token from a completed link flow")
}

func runLink(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}
	ctx := context.Background()

	publicToken := linkPublicToken
	if publicToken == "" {
		token, err := apiClient.CreateLinkToken(ctx)
		if err != nil {
			return userError("create link token", err)
		}

		if token.HostedLinkURL != "" {
			fmt.Printf("Open this link to connect your bank:\n\n  %s\n\n", token.HostedLinkURL)
		} else {
			fmt.Printf("Link token: %s\n", token.LinkToken)
		}
		if !token.Expiration.IsZero() {
			fmt.Printf("The link expires in %s.\n", time.Until(token.Expiration).Round(time.Minute))
		}

		publicToken, err = promptLine("Public token (empty to cancel): ")
		if err != nil {
			return err
		}
	}

	if publicToken == "" {
		logger.Info("link flow exited without a public token")
		fmt.Println("Linking cancelled")
		return nil
	}

	item, err := apiClient.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return userError("link account", err)
	}
	logger.Info("account linked", "item_id", item.ItemID)

	name := item.InstitutionName
	if name == "" {
		name = item.ItemID
	}
	fmt.Printf("Linked %s\n", name)
	return nil
}

func runAccounts(cmd *cobra.Command, args []string) error {
	if err := requireLogin(); err != nil {
		return err
	}

	accounts, err := apiClient.ListAccounts(context.Background())
	if err != nil {
		return userError("list accounts", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No linked accounts. Run 'finchat link' to add one.")
		return nil
	}

	fmt.Printf("%-28s %-8s %-14s %14s\n", "NAME", "MASK", "TYPE", "BALANCE")
	fmt.Println("------------------------------------------------------------------")
	for _, a := range accounts {
		balance := "-"
		if a.CurrentBalance != nil {
			balance = fmt.Sprintf("%.2f %s", *a.CurrentBalance, a.Currency)
		}
		kind := a.Type
		if a.Subtype != "" {
			kind = a.Subtype
		}
		fmt.Printf("%-28s %-8s %-14s %14s\n", truncateName(a.Name, 28), a.Mask, kind, balance)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	if err := apiClient.Health(context.Background()); err != nil {
		return userError("API unreachable", err)
	}
	fmt.Printf("%s is up\n", apiClient.BaseURL())
	return nil
}

// truncateName shortens a string to maxLen, adding "..." if truncated.
func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
