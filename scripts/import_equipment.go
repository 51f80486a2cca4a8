package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"coldbook/internal/config"
	"coldbook/internal/database"
	"coldbook/internal/domain"
	"coldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type equipmentFile struct {
	Equipment []*models.Equipment `yaml:"equipment"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		equipmentPath = flag.String("equipment", "configs/config.yaml", "path to a yaml file with an equipment list")
		dbPath        = flag.String("db", "./data/coldbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*equipmentPath)
	if err != nil {
		return fmt.Errorf("read equipment: %w", err)
	}
	var file equipmentFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse equipment: %w", err)
	}
	if len(file.Equipment) == 0 {
		return fmt.Errorf("no equipment in yaml")
	}
	if err = config.ValidateEquipment(file.Equipment); err != nil {
		return fmt.Errorf("validate equipment: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	skipped := 0
	for _, eq := range file.Equipment {
		if eq.ID == "" {
			eq.ID = uuid.NewString()
		}
		err = db.CreateEquipment(ctx, eq)
		if errors.Is(err, domain.ErrDuplicateResource) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s: %w", eq.Name, err)
		}
		created++
	}

	fmt.Printf("done: created=%d skipped=%d\n", created, skipped)
	return nil
}
