// Command apctl is a read-only inspector CLI over the persistence layer
// (SPEC_FULL.md §3, grounded on the original's scripts/check_packages.py
// and scripts/check_entity_db.py). It never mutates state: every
// subcommand reads through pkg/persistence's query methods only, so it
// can never race with a worker's durable workflow writes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/pkg/artifacts"
	"github.com/rivieraros/apcore/pkg/persistence"
	"github.com/rivieraros/apcore/pkg/reconciliation"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint, mirroring the teacher's
// cmd/helm Run(args, stdout, stderr) int shape.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg := config.Load()
	ctx := context.Background()
	store, err := persistence.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	defer func() { _ = store.Close() }()

	switch args[1] {
	case "packages":
		return runPackages(ctx, store, args[2:], stdout, stderr)
	case "entities":
		return runEntities(ctx, store, args[2:], stdout, stderr)
	case "workflows":
		return runWorkflows(ctx, store, args[2:], stdout, stderr)
	case "inspect":
		return runInspect(ctx, store, args[2:], stdout, stderr)
	case "artifacts":
		return runArtifacts(ctx, args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "apctl: unknown command %q\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "apctl — read-only inspector for the AP orchestration core")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  apctl packages list [--limit N]")
	fmt.Fprintln(w, "  apctl packages show <package-id>")
	fmt.Fprintln(w, "  apctl entities list")
	fmt.Fprintln(w, "  apctl workflows running")
	fmt.Fprintln(w, "  apctl workflows show <workflow-id>")
	fmt.Fprintln(w, "  apctl inspect <package-id>")
	fmt.Fprintln(w, "  apctl artifacts list")
	fmt.Fprintln(w, "")
}

// runArtifacts lists the content hashes held by the artifact store
// configured via the ARTIFACT_* environment variables — the operator's
// way to see what a retention sweep would be diffing against package
// DocumentRefs before anything gets deleted.
func runArtifacts(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(stderr, "Usage: apctl artifacts list")
		return 2
	}

	catalog, err := artifacts.NewCatalogFromEnv(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	refs, err := catalog.List(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	return printJSON(stdout, stderr, refs)
}

// runInspect prints a package's reconciliation report split into its
// warnings and discrepancies, the read-only analogue of the original's
// scripts/show_warnings.py and scripts/analyze_discrepancies.py.
func runInspect(ctx context.Context, store *persistence.Store, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: apctl inspect <package-id>")
		return 2
	}
	packageID := args[0]

	pkg, err := store.GetPackage(ctx, packageID)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	if pkg.ReconciliationRef == nil {
		fmt.Fprintf(stderr, "apctl: package %q has no reconciliation report yet\n", packageID)
		return 2
	}

	catalog, err := artifacts.NewCatalogFromEnv(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	var report reconciliation.Report
	if err := catalog.GetJSON(ctx, *pkg.ReconciliationRef, &report); err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}

	view := struct {
		PackageID     string                      `json:"package_id"`
		Status        reconciliation.ReportStatus `json:"status"`
		Warnings      []reconciliation.Finding    `json:"warnings"`
		Discrepancies []reconciliation.Finding    `json:"discrepancies"`
	}{
		PackageID:     packageID,
		Status:        report.Status,
		Warnings:      report.Warnings(),
		Discrepancies: report.Discrepancies(),
	}
	return printJSON(stdout, stderr, view)
}

// runWorkflows surfaces pkg/persistence's workflow_executions table — the
// set an operator checks after a worker crash to see which package/invoice
// workflows were still RUNNING and may need a resubmit.
func runWorkflows(ctx context.Context, store *persistence.Store, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: apctl workflows <running|show> ...")
		return 2
	}

	switch args[0] {
	case "running":
		executions, err := store.ListRunningWorkflowExecutions(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		return printJSON(stdout, stderr, executions)

	case "show":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: apctl workflows show <workflow-id>")
			return 2
		}
		we, found, err := store.GetWorkflowExecution(ctx, args[1])
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		if !found {
			fmt.Fprintf(stderr, "apctl: no workflow execution %q\n", args[1])
			return 2
		}
		return printJSON(stdout, stderr, we)

	default:
		fmt.Fprintf(stderr, "apctl: unknown workflows subcommand %q\n", args[0])
		return 2
	}
}

func runPackages(ctx context.Context, store *persistence.Store, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: apctl packages <list|show> ...")
		return 2
	}

	switch args[0] {
	case "list":
		cmd := flag.NewFlagSet("packages list", flag.ContinueOnError)
		cmd.SetOutput(stderr)
		limit := cmd.Int("limit", 50, "maximum packages to show")
		if err := cmd.Parse(args[1:]); err != nil {
			return 2
		}
		packages, err := store.ListPackages(ctx, *limit)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		return printJSON(stdout, stderr, packages)

	case "show":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: apctl packages show <package-id>")
			return 2
		}
		packageID := args[1]
		pkg, err := store.GetPackage(ctx, packageID)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		invoices, err := store.ListInvoicesByPackage(ctx, packageID)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		progress, err := store.ListProgressEvents(ctx, packageID)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		audit, err := store.ListAuditEventsByPackage(ctx, packageID)
		if err != nil {
			fmt.Fprintf(stderr, "apctl: %v\n", err)
			return 2
		}
		view := struct {
			Package  any `json:"package"`
			Invoices any `json:"invoices"`
			Progress any `json:"progress"`
			Audit    any `json:"audit"`
		}{Package: pkg, Invoices: invoices, Progress: progress, Audit: audit}
		return printJSON(stdout, stderr, view)

	default:
		fmt.Fprintf(stderr, "apctl: unknown packages subcommand %q\n", args[0])
		return 2
	}
}

func runEntities(ctx context.Context, store *persistence.Store, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(stderr, "Usage: apctl entities list")
		return 2
	}
	entities, err := store.ListAllEntityProfiles(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "apctl: %v\n", err)
		return 2
	}
	return printJSON(stdout, stderr, entities)
}

func printJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "apctl: encode output: %v\n", err)
		return 2
	}
	return 0
}
