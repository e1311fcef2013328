// loanctl is the operator CLI for the loan decision engine's ledger
// database: destructive re-initialization plus account and transaction
// inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ken860819/loan-ai-system/internal/config"
	"github.com/ken860819/loan-ai-system/internal/domain"
	"github.com/ken860819/loan-ai-system/internal/infra/sqlite"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "loanctl",
		Short:   "Operator CLI for the loan decision engine ledger",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", "config/config.yaml", "Path to the config file")

	rootCmd.AddCommand(initdbCmd())
	rootCmd.AddCommand(accountsCmd())
	rootCmd.AddCommand(transactionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(cmd *cobra.Command) (*sqlite.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return sqlite.New(cfg.Database.Path, zap.NewNop())
}

func initdbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Drop and recreate the ledger database (destructive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("initdb deletes all accounts and transactions; re-run with --yes to confirm")
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(context.Background()); err != nil {
				return err
			}
			fmt.Println("ledger database re-initialized")
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm the destructive reset")

	return cmd
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts [user-id]",
		Short: "List all accounts, or show one by user id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			var accounts []domain.Account
			if len(args) == 1 {
				account, err := store.GetAccount(ctx, args[0])
				if err != nil {
					return err
				}
				accounts = []domain.Account{*account}
			} else {
				if accounts, err = store.ListAccounts(ctx); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tNAME\tPD\tLIMIT\tAVAILABLE\tOUTSTANDING\tCREATED")
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%d\t%d\t%d\t%s\n",
					a.UserID, a.Name, a.PD,
					a.LimitAmount, a.AvailableCredit, a.OutstandingBalance,
					a.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func transactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions [user-id]",
		Short: "List an account's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			if _, err := store.GetAccount(ctx, args[0]); err != nil {
				return err
			}
			txs, err := store.ListTransactions(ctx, args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tTIMESTAMP")
			for _, t := range txs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					t.ID, t.Type, t.Amount, t.Timestamp.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}
