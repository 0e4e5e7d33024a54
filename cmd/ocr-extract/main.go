// Command ocr-extract runs the extraction pipeline on a local PDF and writes
// the report to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Lllllllleong/documentocr/internal/document"
	"github.com/Lllllllleong/documentocr/internal/extraction"
	"github.com/Lllllllleong/documentocr/internal/gcp"
	"github.com/Lllllllleong/documentocr/internal/models"
	"github.com/Lllllllleong/documentocr/internal/pdfdoc"
	"github.com/Lllllllleong/documentocr/internal/recognition"
)

type cliConfig struct {
	path      string
	engine    string
	backend   string
	languages string
	project   string
	region    string
	model     string
	textOnly  bool
	progress  bool
	opts      extraction.Options
}

func parseFlags(args []string, stderr io.Writer) (*cliConfig, error) {
	env := extraction.OptionsFromEnv()
	cfg := &cliConfig{}

	fs := flag.NewFlagSet("ocr-extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.opts.Language, "lang", env.Language, "recognition language, e.g. eng or eng+vie")
	fs.Float64Var(&cfg.opts.Scale, "scale", env.Scale, "rasterization scale (0.5 to 4.0)")
	fs.BoolVar(&cfg.opts.ForceOCR, "force", env.ForceOCR, "recognize every page even when it has native text")
	fs.IntVar(&cfg.opts.Concurrency, "concurrency", env.Concurrency, "pages processed in parallel (0 = GOMAXPROCS)")
	whitespace := fs.String("whitespace", string(env.Whitespace), "whitespace-only native text: recognize or keep")
	fs.StringVar(&cfg.engine, "engine", gcp.GetEnv("OCR_ENGINE", recognition.EngineTesseract), "recognition engine: tesseract or gemini")
	fs.StringVar(&cfg.backend, "backend", gcp.GetEnv("PDF_BACKEND", ""), "PDF backend: mupdf (default) or image")
	fs.StringVar(&cfg.languages, "languages", gcp.GetEnv("OCR_LANGUAGES", strings.Join(recognition.DefaultLanguages, ",")), "comma separated languages the engine accepts")
	fs.StringVar(&cfg.project, "project", gcp.GetEnv("PROJECT_ID", ""), "GCP project for the gemini engine")
	fs.StringVar(&cfg.region, "region", gcp.GetEnv("VERTEX_AI_REGION", "us-central1"), "Vertex AI region for the gemini engine")
	fs.StringVar(&cfg.model, "model", gcp.GetEnv("OCR_GEMINI_MODEL", gcp.DefaultOCRModel), "Gemini model name")
	fs.BoolVar(&cfg.textOnly, "text", false, "print the extracted text instead of the JSON report")
	fs.BoolVar(&cfg.progress, "progress", false, "log one line per completed page")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("usage: ocr-extract [flags] file.pdf")
	}
	cfg.path = fs.Arg(0)
	cfg.opts.Whitespace = extraction.WhitespacePolicy(strings.ToLower(*whitespace))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func run(ctx context.Context, cfg *cliConfig, stdout io.Writer) error {
	recCfg := recognition.Config{Engine: cfg.engine, Languages: splitList(cfg.languages)}
	if cfg.engine == recognition.EngineGemini {
		vc, err := gcp.NewVertexClient(ctx, cfg.project, cfg.region, cfg.model)
		if err != nil {
			return err
		}
		defer vc.Close()
		recCfg.GeminiModel = vc.OCRModel
	}
	engine, err := recognition.New(ctx, recCfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	rasterizer, text, err := pdfdoc.NewBackend(cfg.backend)
	if err != nil {
		return err
	}
	ex := extraction.New(pdfdoc.Loader(), rasterizer, text, engine)

	opts := cfg.opts
	if cfg.progress {
		opts.OnProgress = func(ev models.ProgressEvent) {
			slog.Info("Page done.", "page", ev.Result.Page, "completed", ev.Completed, "total", ev.Total, "failed", ev.Result.Failed())
		}
	}

	report, err := ex.Extract(ctx, document.Source{Path: cfg.path}, opts)
	if err != nil {
		return err
	}
	slog.Info(report.Summary())

	if cfg.textOnly {
		_, err = io.WriteString(stdout, report.Text("\n\f\n")+"\n")
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		slog.Error("Extraction failed", "error", err)
		os.Exit(1)
	}
}
