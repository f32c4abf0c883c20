// Package common provides shared dependency construction for CLI commands.
package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/racesync/internal/config"
	"github.com/jonesrussell/racesync/internal/database"
	"github.com/jonesrussell/racesync/internal/logger"
)

// Flag values bound by the root command.
var (
	// CfgFile is the path to the configuration file, if set.
	CfgFile string

	// Debug enables debug logging for all commands.
	Debug bool
)

// CommandDeps holds the dependencies every command starts from.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewCommandDeps loads configuration and creates the logger.
func NewCommandDeps() (*CommandDeps, error) {
	cfg, err := config.Load(CfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if Debug {
		cfg.Debug = true
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &CommandDeps{Config: cfg, Logger: log}, nil
}

// OpenDatabase connects to PostgreSQL using the loaded configuration.
func (d *CommandDeps) OpenDatabase() (*sqlx.DB, error) {
	db, err := database.NewPostgresConnection(d.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Repositories bundles the database repositories used across commands.
type Repositories struct {
	Sources  *database.SourceRepository
	Bindings *database.BindingRepository
	Runs     *database.RunRepository
	Crawls   *database.CrawlRepository
	Editions *database.EditionRepository
}

// NewRepositories constructs all repositories over one connection.
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Sources:  database.NewSourceRepository(db),
		Bindings: database.NewBindingRepository(db),
		Runs:     database.NewRunRepository(db),
		Crawls:   database.NewCrawlRepository(db),
		Editions: database.NewEditionRepository(db),
	}
}
