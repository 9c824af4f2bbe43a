package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/leadcapture/internal/config"
	"github.com/wolfman30/leadcapture/internal/leads"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

// LeadStore bundles the configured backend with its lifecycle hooks.
type LeadStore struct {
	Store  leads.Store
	Lister leads.Lister // nil when the backend cannot list
	Health func(ctx context.Context) error
	Close  func()
}

// BuildLeadStore opens the backend named by LEAD_STORE. awsCfg is required
// for dynamodb.
func BuildLeadStore(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*LeadStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.LeadStore {
	case "postgres", "":
		return buildPostgresStore(ctx, cfg.DatabaseURL, logger)
	case "dynamodb":
		if awsCfg == nil {
			return nil, errors.New("bootstrap: dynamodb lead store requires AWS config")
		}
		repo := leads.NewDynamoRepository(dynamodb.NewFromConfig(*awsCfg), cfg.LeadsTable)
		logger.Info("lead store ready", "backend", "dynamodb", "table", cfg.LeadsTable)
		return &LeadStore{Store: repo, Close: func() {}}, nil
	case "memory":
		repo := leads.NewInMemoryRepository()
		logger.Warn("lead store is in-memory, leads are lost on restart")
		return &LeadStore{Store: repo, Lister: repo, Close: func() {}}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown LEAD_STORE %q", cfg.LeadStore)
	}
}

func buildPostgresStore(ctx context.Context, databaseURL string, logger *logging.Logger) (*LeadStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("bootstrap: DATABASE_URL (or SUPABASE_DB_URL) is required for the postgres lead store")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	repo := leads.NewPostgresRepository(pool)
	logger.Info("lead store ready", "backend", "postgres")
	return &LeadStore{
		Store:  repo,
		Lister: repo,
		Health: pool.Ping,
		Close:  pool.Close,
	}, nil
}
