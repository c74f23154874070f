// Command worker is the process entrypoint that hosts C7's workflow
// engine and activity pool (spec.md §5 "Worker pool"). It wires the
// persistence, artifact, extractor, and ERP collaborators from the
// environment and then serves package/invoice submissions over HTTP,
// running each one synchronously through the durable-execution Runner so
// a crash mid-package resumes from its last memoized activity on restart.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rivieraros/apcore/internal/aperrors"
	"github.com/rivieraros/apcore/internal/config"
	"github.com/rivieraros/apcore/internal/obslog"
	"github.com/rivieraros/apcore/pkg/artifacts"
	"github.com/rivieraros/apcore/pkg/domain"
	"github.com/rivieraros/apcore/pkg/erp"
	"github.com/rivieraros/apcore/pkg/extractor"
	"github.com/rivieraros/apcore/pkg/observability"
	"github.com/rivieraros/apcore/pkg/persistence"
	"github.com/rivieraros/apcore/pkg/workflow"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the testable entrypoint (mirrors the teacher's cmd/helm
// Run(args, stdout, stderr) int shape). Exit codes follow spec.md §6:
// 0 graceful shutdown, 1 fatal initialization error, 2 lost connection
// not recoverable.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "worker: fatal initialization error: %v\n", err)
		return 1
	}

	logger := obslog.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(stderr, "worker: persistence: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	catalog, err := artifacts.NewCatalogFromEnv(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "worker: artifacts: %v\n", err)
		return 1
	}

	extractorClient, err := extractor.NewClient(stubStatementExtractor, stubInvoiceExtractor, cfg.ExtractorRPS, 1)
	if err != nil {
		fmt.Fprintf(stderr, "worker: extractor: %v\n", err)
		return 1
	}

	var lease *workflow.LeaseStore
	if cfg.RedisURL != "" {
		lease = workflow.NewLeaseStore(cfg.RedisURL, "", 0, 2*time.Minute)
		defer func() { _ = lease.Close() }()
	}

	otelConfig := observability.DefaultConfig()
	otelConfig.Enabled = cfg.OTLPEndpoint != ""
	otelConfig.OTLPEndpoint = cfg.OTLPEndpoint
	obsProvider, err := observability.New(ctx, otelConfig)
	if err != nil {
		fmt.Fprintf(stderr, "worker: observability: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = obsProvider.Shutdown(shutdownCtx)
	}()

	profiles, err := familyProfiles(cfg.ProfilesDir)
	if err != nil {
		fmt.Fprintf(stderr, "worker: family profiles: %v\n", err)
		return 1
	}

	activities := &workflow.Activities{
		Store:     store,
		Catalog:   catalog,
		Extractor: extractorClient,
		ERP:       noopERPClient{},
		Profiles:  profiles,
		VendorExists: func(entityID, ownerName string) bool {
			vendors, err := store.ListVendorProfilesByEntity(context.Background(), entityID)
			if err != nil {
				return false
			}
			for _, v := range vendors {
				if strings.EqualFold(v.Name, ownerName) {
					return true
				}
			}
			return false
		},
	}

	srv := &server{activities: activities, logger: logger, lease: lease, ownerID: uuid.NewString(), obs: obsProvider}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/packages", srv.handleSubmitPackage)
	mux.HandleFunc("/invoices", srv.handleSubmitInvoice)

	addr := ":8090"
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serveErrs := make(chan error, 1)
	go func() {
		logger.Info("worker listening", map[string]any{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("worker shutting down", nil)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return 0
	case err := <-serveErrs:
		fmt.Fprintf(stderr, "worker: lost connection: %v\n", err)
		return 2
	}
}

// server bundles HTTP handlers around a fixed set of activities. Each
// request runs one workflow synchronously to completion (or failure);
// a deployment that needs asynchronous submission puts a queue in front
// of this process rather than this process polling one itself, since the
// durable execution guarantee lives in pkg/workflow's memoization, not in
// how a package's id first reaches this worker.
type server struct {
	activities *workflow.Activities
	logger     *obslog.Logger
	lease      *workflow.LeaseStore // nil when REDIS_URL is unset; single-worker deployments don't need it
	ownerID    string
	obs        *observability.Provider
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *server) handleSubmitPackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var input workflow.PackageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	if s.lease != nil {
		ok, err := s.lease.Acquire(r.Context(), input.PackageID, s.ownerID)
		if err != nil {
			http.Error(w, fmt.Sprintf("acquire lease: %v", err), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "package already owned by another worker", http.StatusConflict)
			return
		}
		stopRenew := s.renewLeasePeriodically(input.PackageID)
		defer stopRenew()
		defer func() { _ = s.lease.Release(context.Background(), input.PackageID, s.ownerID) }()
	}

	ctx, done := s.obs.TrackOperation(r.Context(), "package_workflow",
		attribute.String("package_id", input.PackageID),
		attribute.String("feedlot_family", string(input.FeedlotFamily)),
	)
	runner := workflow.NewRunner(s.activities.Store, input.PackageID, s.logger)
	result, err := workflow.APPackageWorkflow(ctx, runner, s.activities, input)
	done(err)
	if err != nil {
		s.logger.Error("package workflow failed", map[string]any{"package_id": input.PackageID, "error": err.Error()})
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *server) handleSubmitInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var input workflow.InvoiceWorkflowInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	ctx, done := s.obs.TrackOperation(r.Context(), "invoice_workflow",
		attribute.String("package_id", input.PackageID),
		attribute.String("entity_id", input.EntityID),
	)
	runner := workflow.NewRunner(s.activities.Store, input.WorkflowID, s.logger)
	result, err := workflow.InvoiceWorkflow(ctx, runner, s.activities, input)
	done(err)
	if err != nil {
		s.logger.Error("invoice workflow failed", map[string]any{"package_id": input.PackageID, "error": err.Error()})
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// renewLeasePeriodically keeps the lease on packageID alive for as long
// as this request's workflow is still running, in case a package with
// many pages/invoices takes longer to process than the lease TTL. The
// returned stop func must be called once the workflow returns.
func (s *server) renewLeasePeriodically(packageID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.lease.TTL() / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.lease.Renew(context.Background(), packageID, s.ownerID); err != nil {
					s.logger.Error("renew lease failed", map[string]any{"package_id": packageID, "error": err.Error()})
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// stubStatementExtractor and stubInvoiceExtractor are the seam where a
// real OpenAI-class extractor plugs in (spec.md §6: "the core does not
// know about LLMs; these are opaque"). This binary ships without one
// wired in, since the extractor's actual implementation is explicitly
// out of scope; an operator replaces these two functions with calls into
// whatever extraction service they run.
func stubStatementExtractor(ctx context.Context, pdfPath string, pages []int, prompt string) (domain.StatementDocument, error) {
	return domain.StatementDocument{}, &aperrors.TransientIoError{Op: "extract_statement", Err: fmt.Errorf("no extractor backend configured")}
}

func stubInvoiceExtractor(ctx context.Context, pdfPath string, page int, prompt string) (domain.InvoiceDocument, error) {
	return domain.InvoiceDocument{}, &aperrors.TransientIoError{Op: "extract_invoice", Err: fmt.Errorf("no extractor backend configured")}
}

// noopERPClient is the seam where a real Business Central (or other ERP)
// adapter plugs in (spec.md §1 Non-goals explicitly excludes shipping a
// real wire adapter; §6 names the interface it must satisfy). Every
// method returns a clear "not configured" error rather than silently
// fabricating ERP-side data.
type noopERPClient struct{}

var errNoERPBackend = fmt.Errorf("erp: no backend configured")

func (noopERPClient) ListEntities(ctx context.Context, opts erp.ListOptions) ([]erp.EntityRef, error) {
	return nil, errNoERPBackend
}
func (noopERPClient) ListVendors(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.VendorRef, error) {
	return nil, errNoERPBackend
}
func (noopERPClient) ListGLAccounts(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.GLAccountRef, error) {
	return nil, errNoERPBackend
}
func (noopERPClient) ListDimensions(ctx context.Context, entityID string, opts erp.ListOptions) ([]erp.DimensionRef, error) {
	return nil, errNoERPBackend
}
func (noopERPClient) ListDimensionValues(ctx context.Context, entityID, dimensionCode string, opts erp.ListOptions) ([]erp.DimensionValueRef, error) {
	return nil, errNoERPBackend
}
func (noopERPClient) CreateDraftPurchaseInvoice(ctx context.Context, entityID string, payload erp.InvoicePayload) (erp.CreatedInvoiceRef, error) {
	return erp.CreatedInvoiceRef{}, errNoERPBackend
}
func (noopERPClient) Post(ctx context.Context, entityID, invoiceID string) (erp.PostedInvoiceRef, error) {
	return erp.PostedInvoiceRef{}, errNoERPBackend
}
func (noopERPClient) GetStatus(ctx context.Context, entityID, invoiceID string) (erp.InvoiceStatus, error) {
	return erp.StatusUnknown, errNoERPBackend
}

// familyProfiles loads every family profile (built-in defaults plus any
// YAML override/addition found under profilesDir) and converts config's
// string-keyed map into the domain.FeedlotFamily-keyed map Activities
// expects.
func familyProfiles(profilesDir string) (map[domain.FeedlotFamily]config.FamilyProfile, error) {
	loaded, err := config.LoadAllProfiles(profilesDir)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.FeedlotFamily]config.FamilyProfile)
	for k, v := range loaded {
		out[domain.FeedlotFamily(k)] = v
	}
	return out, nil
}
