package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/hasher"
	"github.com/artpar/usageledger/adapters/idgen"
	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/app"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Manage UsageLedger API keys.

Each project can have multiple API keys. Keys authenticate usage
reports and scope them to the owning project. The raw key is printed
exactly once at mint time; only a hash is stored.

Examples:
  usageledger keys list --project=proj_123
  usageledger keys mint --project=proj_123 --name=ci
  usageledger keys revoke key_abc123`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a project's API keys",
	RunE:  runKeysList,
}

var keysMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a new API key",
	RunE:  runKeysMint,
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRevoke,
}

var (
	keyProjectID string
	keyName      string
)

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysMintCmd)
	keysCmd.AddCommand(keysRevokeCmd)

	keysListCmd.Flags().StringVar(&keyProjectID, "project", "", "project ID (required)")
	keysListCmd.MarkFlagRequired("project")
	keysMintCmd.Flags().StringVar(&keyProjectID, "project", "", "project ID (required)")
	keysMintCmd.Flags().StringVar(&keyName, "name", "", "key name (optional)")
	keysMintCmd.MarkFlagRequired("project")
}

func newKeyService(db *sqlite.DB) *app.KeyService {
	return app.NewKeyService(app.KeyDeps{
		Keys:     sqlite.NewKeyStore(db),
		Projects: sqlite.NewProjectStore(db),
		Hasher:   hasher.NewBcrypt(0),
		Clock:    clock.Real{},
		IDGen:    idgen.UUID{},
	})
}

func runKeysList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := newKeyService(db).ListByProject(context.Background(), keyProjectID)
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Printf("No keys found for project %s.\n", keyProjectID)
		fmt.Println()
		fmt.Println("Mint a key with: usageledger keys mint --project=" + keyProjectID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tNAME\tSTATUS\tCREATED")
	fmt.Fprintln(w, "--\t------\t----\t------\t-------")

	for _, k := range keys {
		status := "active"
		if k.RevokedAt != nil {
			status = "revoked"
		}
		fmt.Fprintf(w, "%s\t%s...\t%s\t%s\t%s\n",
			k.ID, k.Prefix, k.Name, status, k.CreatedAt.Format("2006-01-02"))
	}

	w.Flush()
	return nil
}

func runKeysMint(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	rawKey, k, err := newKeyService(db).Mint(context.Background(), keyProjectID, keyName)
	if err != nil {
		return fmt.Errorf("failed to mint key: %w", err)
	}

	fmt.Println("API key minted. Store it now; it cannot be shown again.")
	fmt.Println()
	fmt.Printf("  ID:      %s\n", k.ID)
	fmt.Printf("  Project: %s\n", k.ProjectID)
	fmt.Printf("  Key:     %s\n", rawKey)
	return nil
}

func runKeysRevoke(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := newKeyService(db).Revoke(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	fmt.Printf("Key %s revoked.\n", args[0])
	return nil
}
