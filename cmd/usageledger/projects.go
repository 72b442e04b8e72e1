package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/ports"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long: `Manage UsageLedger projects.

A project is the accounting scope: API keys belong to a project, and
every recorded event, quota pool, and rollup row is attributed to one.

Examples:
  usageledger projects list
  usageledger projects create --name="My Service"`,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE:  runProjectsList,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project",
	RunE:  runProjectsCreate,
}

var projectName string

func init() {
	rootCmd.AddCommand(projectsCmd)

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)

	projectsCreateCmd.Flags().StringVar(&projectName, "name", "", "project name (required)")
	projectsCreateCmd.MarkFlagRequired("name")
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	projects, err := sqlite.NewProjectStore(db).List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		fmt.Println()
		fmt.Println("Create one with: usageledger projects create --name=<name>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	fmt.Fprintln(w, "--\t----\t-------")

	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Format("2006-01-02"))
	}

	w.Flush()
	return nil
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	p := ports.Project{
		ID:        "proj_" + uuid.NewString()[:8],
		Name:      projectName,
		CreatedAt: time.Now().UTC(),
	}

	if err := sqlite.NewProjectStore(db).Create(context.Background(), p); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	fmt.Printf("Project created.\n")
	fmt.Printf("  ID:   %s\n", p.ID)
	fmt.Printf("  Name: %s\n", p.Name)
	return nil
}
