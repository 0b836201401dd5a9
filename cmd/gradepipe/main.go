package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gradepipe/gradepipe/internal/document"
	"github.com/gradepipe/gradepipe/internal/gateway"
	"github.com/gradepipe/gradepipe/internal/grader"
	"github.com/gradepipe/gradepipe/internal/handler"
	appI18n "github.com/gradepipe/gradepipe/internal/i18n"
	"github.com/gradepipe/gradepipe/internal/matcher"
	"github.com/gradepipe/gradepipe/internal/ocr"
	"github.com/gradepipe/gradepipe/internal/pipeline"
	"github.com/gradepipe/gradepipe/internal/prompts"
	"github.com/gradepipe/gradepipe/internal/store"
)

func main() {
	// Tokens often live in a local .env during development.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gradepipe",
		Short: "Handwritten answer sheet grading powered by vision and language models",
	}

	serve := serveCmd()
	root.AddCommand(serve, evaluateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gradepipe --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("hf-token", "", "Hugging Face API token (or set GRADEPIPE_HF_TOKEN / HF_TOKEN)")
	f.String("ocr-endpoint", ocr.DefaultPrimaryEndpoint, "Primary OCR model endpoint")
	f.String("ocr-backup-endpoint", ocr.DefaultBackupEndpoint, "Backup OCR model endpoint")
	f.String("match-endpoint", matcher.DefaultEndpoint, "Question matching model endpoint")
	f.String("grade-endpoint", grader.DefaultEndpoint, "Grading model endpoint")
	f.String("prompt-variant", string(prompts.VariantStandard), "Grading prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP evaluation server",
		RunE:  runServe,
	}
	addModelFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.String("db", "gradepipe.db", "SQLite database path for the paper and key library")
	return cmd
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one answer sheet and print the report as JSON",
		RunE:  runEvaluate,
	}
	addModelFlags(cmd)
	f := cmd.Flags()
	f.StringP("sheet", "s", "", "Answer sheet file: PDF or image (required)")
	f.StringP("paper", "p", "", "Question paper file: PDF or plain text")
	f.String("paper-text", "", "Question paper text given inline")
	f.StringP("key", "k", "", "Solution key file: PDF or plain text")
	f.String("key-text", "", "Solution key text given inline")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")

	_ = cmd.MarkFlagRequired("sheet")

	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GRADEPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gradepipe")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gradepipe")
	v.AddConfigPath("/etc/gradepipe")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func resolveToken(v *viper.Viper) string {
	if token := v.GetString("hf-token"); token != "" {
		return token
	}
	return os.Getenv("HF_TOKEN")
}

func buildPipeline(v *viper.Viper) (*pipeline.Pipeline, error) {
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	gw, err := gateway.New(gateway.Config{Token: resolveToken(v)})
	if err != nil {
		return nil, fmt.Errorf("create model gateway: %w", err)
	}

	promptVariant := prompts.Variant(strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant"))))
	if !prompts.IsValidVariant(string(promptVariant)) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = prompts.VariantStandard
	}

	return pipeline.New(
		ocr.New(gw, v.GetString("ocr-endpoint"), v.GetString("ocr-backup-endpoint")),
		matcher.New(gw, v.GetString("match-endpoint")),
		grader.New(gw, v.GetString("grade-endpoint"), promptVariant),
	), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	p, err := buildPipeline(v)
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	h := handler.New(db, p)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"ocr_endpoint", v.GetString("ocr-endpoint"),
		"match_endpoint", v.GetString("match-endpoint"),
		"grade_endpoint", v.GetString("grade-endpoint"),
		"prompt_variant", v.GetString("prompt-variant"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	p, err := buildPipeline(v)
	if err != nil {
		return err
	}

	sheetData, err := os.ReadFile(v.GetString("sheet"))
	if err != nil {
		return fmt.Errorf("read answer sheet: %w", err)
	}
	pages, err := document.LoadPages(sheetData)
	if err != nil {
		return fmt.Errorf("load answer sheet: %w", err)
	}

	paperText, err := resolveInput(v.GetString("paper"), v.GetString("paper-text"))
	if err != nil {
		return fmt.Errorf("question paper: %w", err)
	}
	if paperText == "" {
		return fmt.Errorf("question paper is required: set --paper or --paper-text")
	}

	keyText, err := resolveInput(v.GetString("key"), v.GetString("key-text"))
	if err != nil {
		return fmt.Errorf("solution key: %w", err)
	}
	if keyText == "" {
		return fmt.Errorf("solution key is required: set --key or --key-text")
	}

	ctx := cmd.Context()
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	rep, err := p.Evaluate(ctx, pipeline.Submission{
		Pages:         pages,
		QuestionPaper: paperText,
		SolutionKey:   keyText,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}

// resolveInput reads a textual input from a file (PDF text extracted) or
// takes it inline, preferring the file when both are set.
func resolveInput(path, inline string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return document.ExtractText(data)
	}
	return inline, nil
}
