package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/extraction"
	"github.com/Lllllllleong/documentocr/internal/gcp"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/Lllllllleong/documentocr/internal/pdfdoc"
	"github.com/Lllllllleong/documentocr/internal/recognition"
)

// ExtractorConfig holds all configuration for the OCR extractor service.
type ExtractorConfig struct {
	ProjectID        string
	ResultsBucket    string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	VertexAIRegion   string
	Engine           string
	GeminiModel      string
	Backend          string
	Languages        []string
	Options          extraction.Options
}

// ExtractorFunction holds the dependencies for the extraction logic.
type ExtractorFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	vertexClient     *gcp.VertexClient
	extractor        *extraction.Extractor
	config           ExtractorConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// loadConfig loads and validates all necessary environment variables for this service.
func loadConfig() (*ExtractorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	resultsBucket := gcp.GetEnv("OCR_RESULTS_BUCKET", "")
	if resultsBucket == "" {
		return nil, fmt.Errorf("OCR_RESULTS_BUCKET environment variable must be set")
	}

	return &ExtractorConfig{
		ProjectID:        projectID,
		ResultsBucket:    resultsBucket,
		CollectionName:   gcp.GetEnv("FIRESTORE_COLLECTION", "documents"),
		WorkflowID:       gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		VertexAIRegion:   gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Engine:           gcp.GetEnv("OCR_ENGINE", recognition.EngineTesseract),
		GeminiModel:      gcp.GetEnv("OCR_GEMINI_MODEL", gcp.DefaultOCRModel),
		Backend:          gcp.GetEnv("PDF_BACKEND", ""),
		Languages:        gcp.GetEnvList("OCR_LANGUAGES", recognition.DefaultLanguages),
		Options:          extraction.OptionsFromEnv(),
	}, nil
}

// NewExtractor creates a new ExtractorFunction instance.
func NewExtractor(ctx context.Context) (*ExtractorFunction, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &ExtractorFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		config:          *config,
	}
	if config.WorkflowID != "" {
		if f.executionsClient, err = executions.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}

	recCfg := recognition.Config{Engine: config.Engine, Languages: config.Languages}
	if config.Engine == recognition.EngineGemini {
		f.vertexClient, err = gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		recCfg.GeminiModel = f.vertexClient.OCRModel
	}
	engine, err := recognition.New(ctx, recCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure recognition engine: %w", err)
	}
	rasterizer, text, err := pdfdoc.NewBackend(config.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to configure PDF backend: %w", err)
	}
	f.extractor = extraction.New(pdfdoc.Loader(), rasterizer, text, engine)

	slog.Info("OCR extractor initialized.",
		"engine", engine.Name(),
		"languages", engine.Languages(),
		"workflowId", config.WorkflowID,
	)
	return f, nil
}

// Process extracts the text of a newly uploaded PDF and records the outcome.
func (f *ExtractorFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	data, err := gcp.ReadGCSObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash := hashBytes(data)
	logCtx = logCtx.With("fileHash", fileHash)

	coll := f.firestoreClient.Collection(f.config.CollectionName)
	existingID, err := gcp.FindJobByHash(ctx, coll, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if existingID != "" {
		logCtx.Info("Duplicate file detected. Skipping.", "existingDocId", existingID)
		return nil
	}

	opts := f.config.Options
	docRef, err := gcp.CreateJob(ctx, coll, models.Document{
		FileHash:         fileHash,
		OriginalFilename: e.Name,
		Status:           models.StatusValidating,
		Language:         opts.Language,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		logCtx.Error("Failed to create initial Firestore document", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", docRef.ID)
	logCtx.Info("Created master document in Firestore.")

	doc, err := pdfdoc.Open(ctx, document.Source{Name: e.Name, Data: data})
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to open PDF", err)
	}
	pageCount := doc.PageCount()
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusExtracting},
		{Path: "pageCount", Value: pageCount},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		_ = doc.Close()
		return f.handleError(ctx, logCtx, docRef, "failed to update status to EXTRACTING", err)
	}

	opts.Logger = logCtx
	opts.OnProgress = func(ev models.ProgressEvent) {
		if _, err := docRef.Update(ctx, []firestore.Update{{Path: "pagesCompleted", Value: ev.Completed}}); err != nil {
			logCtx.Warn("Failed to record progress.", "page", ev.Result.Page, "error", err)
		}
	}
	report, err := f.extractor.ExtractDocument(ctx, doc, opts)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "extraction aborted", err)
	}

	reportURI, textURI, err := f.saveResults(ctx, docRef.ID, report)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to save extraction results", err)
	}

	status := finalStatus(report)
	updates = []firestore.Update{
		{Path: "status", Value: status},
		{Path: "failedPages", Value: report.FailedPages},
		{Path: "averageConfidence", Value: report.AverageConfidence},
		{Path: "reportGcsUri", Value: reportURI},
		{Path: "textGcsUri", Value: textURI},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update final status", err)
	}
	logCtx.Info("Extraction results saved.", "status", status, "summary", report.Summary())

	return f.triggerWorkflow(ctx, logCtx, docRef, models.WorkflowPayload{
		DocumentID:   docRef.ID,
		PageCount:    report.TotalPages,
		FailedPages:  report.FailedPages,
		ReportGCSUri: reportURI,
		TextGCSUri:   textURI,
	})
}

// ExtractURI extracts a gs:// object and returns the report inline. Nothing
// is persisted.
func (f *ExtractorFunction) ExtractURI(ctx context.Context, req *models.PageExtractorRequest) (*models.PageExtractorResponse, error) {
	logCtx := slog.With("gcsUri", req.GCSUri, "executionId", req.ExecutionID)

	bucket, object, err := gcp.ParseGCSURI(req.GCSUri)
	if err != nil {
		return nil, err
	}
	data, err := gcp.ReadGCSObject(ctx, f.storageClient, bucket, object)
	if err != nil {
		logCtx.Error("Failed to download PDF", "error", err)
		return nil, err
	}

	opts := requestOptions(f.config.Options, req)
	opts.Logger = logCtx
	report, err := f.extractor.Extract(ctx, document.Source{Name: req.GCSUri, Data: data}, opts)
	if err != nil {
		logCtx.Error("Extraction failed", "error", err)
		return nil, err
	}
	logCtx.Info("Extraction complete.", "summary", report.Summary())
	return &models.PageExtractorResponse{
		Status:  responseStatus(report),
		Summary: report.Summary(),
		Report:  report,
	}, nil
}

func (f *ExtractorFunction) saveResults(ctx context.Context, docID string, report *models.ExtractionReport) (reportURI, textURI string, err error) {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal report: %w", err)
	}
	bucket := f.storageClient.Bucket(f.config.ResultsBucket)
	reportObj, textObj := resultObjects(docID)
	if err := gcp.SaveWithRetry(ctx, bucket, reportObj, "application/json", reportJSON); err != nil {
		return "", "", err
	}
	if err := gcp.SaveWithRetry(ctx, bucket, textObj, "text/plain; charset=utf-8", []byte(report.Text(pageSeparator))); err != nil {
		return "", "", err
	}
	return gcsURI(f.config.ResultsBucket, reportObj), gcsURI(f.config.ResultsBucket, textObj), nil
}

func (f *ExtractorFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, payload models.WorkflowPayload) error {
	if f.executionsClient == nil {
		logCtx.Info("No workflow configured. Done.")
		return nil
	}
	logCtx.Info("Triggering workflow.")
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to marshal workflow payload", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := f.executionsClient.CreateExecution(ctx, req)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to trigger workflow execution", err)
	}
	if _, err := docRef.Update(ctx, []firestore.Update{{Path: "workflowExecutionId", Value: exec.GetName()}}); err != nil {
		logCtx.Warn("Failed to record workflow execution.", "execution", exec.GetName(), "error", err)
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", exec.GetName())
	return nil
}

func (f *ExtractorFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := gcp.UpdateJobStatus(ctx, docRef, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

// Close releases the service's clients.
func (f *ExtractorFunction) Close() error {
	var errs []error
	if f.vertexClient != nil {
		errs = append(errs, f.vertexClient.Close())
	}
	if f.executionsClient != nil {
		errs = append(errs, f.executionsClient.Close())
	}
	errs = append(errs, f.storageClient.Close(), f.firestoreClient.Close())
	return errors.Join(errs...)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
