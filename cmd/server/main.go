package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"tpris/backend/internal/ai"
	"tpris/backend/internal/api"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env")
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logrus.SetLevel(parsed)
		} else {
			logrus.WithError(err).Warn("ignoring LOG_LEVEL")
		}
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}
	dataDir := filepath.Join(baseDir, "data")

	generator, err := buildGenerator()
	if err != nil {
		logrus.Fatalf("configure inference runtime: %v", err)
	}

	cfg := api.Config{
		CSVPath:   filepath.Join(dataDir, "submitted_feedback.csv"),
		DBPath:    strings.TrimSpace(os.Getenv("DB_PATH")),
		Generator: generator,
		Salvage:   strings.EqualFold(strings.TrimSpace(os.Getenv("SALVAGE_JSON")), "true"),
	}
	if override := strings.TrimSpace(os.Getenv("SUBMISSIONS_CSV")); override != "" {
		cfg.CSVPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	logrus.Infof("starting TP-RIS backend on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}

func buildGenerator() (ai.Generator, error) {
	var timeout time.Duration
	if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		} else {
			logrus.WithError(err).Warn("ignoring LLM_TIMEOUT")
		}
	}
	var temperature float64
	if raw := strings.TrimSpace(os.Getenv("LLM_TEMPERATURE")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			temperature = v
		}
	}

	openAI := func() (ai.Generator, error) {
		cfg := ai.Config{
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       os.Getenv("LLM_MODEL"),
			BaseURL:     os.Getenv("LLM_BASE_URL"),
			Temperature: temperature,
			Timeout:     timeout,
		}
		if maxTokens := os.Getenv("LLM_MAX_TOKENS"); maxTokens != "" {
			if v, err := strconv.Atoi(maxTokens); err == nil {
				cfg.MaxTokens = v
			}
		}
		return ai.NewClient(cfg)
	}
	ollama := func() ai.Generator {
		return ai.NewOllamaClient(ai.OllamaConfig{
			Endpoint:    os.Getenv("OLLAMA_URL"),
			Model:       os.Getenv("OLLAMA_MODEL"),
			Temperature: temperature,
			Timeout:     timeout,
		})
	}

	switch provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))); provider {
	case "", "openai", "lmstudio":
		return openAI()
	case "ollama":
		return ollama(), nil
	case "chain":
		primary, err := openAI()
		if err != nil {
			return nil, err
		}
		return ai.WithFallback(primary, ollama()), nil
	default:
		return nil, errors.New("unknown LLM_PROVIDER " + strconv.Quote(provider))
	}
}
