// Command kb-builder loads patient utterances from a dialogue dataset into the
// retrieval knowledge base.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/yoockh/yoocare/config"
	"github.com/yoockh/yoocare/internal/knowledge"
	"github.com/yoockh/yoocare/internal/logger"
	"github.com/yoockh/yoocare/internal/providers/embedding"
	pgrepo "github.com/yoockh/yoocare/internal/repositories/postgres"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("kb-builder")

	path := flag.String("file", "", "CSV or XLSX dataset")
	column := flag.String("column", "dialogue", "column holding the dialogue text")
	batch := flag.Int("batch", 100, "embedding batch size")
	flag.Parse()
	if *path == "" {
		log.Fatal("-file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dialogues, err := knowledge.ReadDialogues(*path, *column)
	if err != nil {
		log.WithError(err).Fatal("failed to read dataset")
	}
	lines := knowledge.PatientLines(dialogues)
	if len(lines) == 0 {
		log.Fatal("no patient lines found in dataset")
	}
	log.WithField("lines", len(lines)).Info("extracted patient lines")

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "text-embedding-3-small"
	}
	e := embedding.NewOpenAI(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), model)

	n, err := knowledge.Build(ctx, e, pgrepo.NewKBRepo(config.PostgresDB), lines, *batch)
	if err != nil {
		log.WithError(err).WithField("written", n).Fatal("knowledge base build failed")
	}
	log.WithField("written", n).Info("knowledge base built")
}
