// Package node assembles the vote ledger into a runnable process: the
// database, the sequencer, the ledger and referral tracker, the casting
// service and the HTTP surfaces in front of them.
package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc"
	"github.com/starcasthq/starcast/clients/directory"
	"github.com/starcasthq/starcast/clients/payments"
	"github.com/starcasthq/starcast/db"
	"github.com/starcasthq/starcast/ledger"
	"github.com/starcasthq/starcast/referral"
	"github.com/starcasthq/starcast/sequencer"
	"github.com/starcasthq/starcast/service"
	"github.com/starcasthq/starcast/utils"
	"github.com/starcasthq/starcast/voting"
)

// Config is the top-level starcast configuration.
type Config struct {
	LogLevel utils.LogLevel `mapstructure:"log-level"`
	Colour   bool           `mapstructure:"colour"`

	HTTPPort uint16 `mapstructure:"http-port"`

	DatabasePath string `mapstructure:"db-path"`

	DirectoryURL string `mapstructure:"directory-url"`
	PaymentsURL  string `mapstructure:"payments-url"`

	Metrics     bool   `mapstructure:"metrics"`
	MetricsPort uint16 `mapstructure:"metrics-port"`

	Pprof     bool   `mapstructure:"pprof"`
	PprofPort uint16 `mapstructure:"pprof-port"`
}

type Node struct {
	cfg *Config
	db  db.DB

	services []service.Service
	log      utils.Logger

	version string
}

// New builds the node from the config. Any error while opening the database
// or creating the logger is returned.
func New(cfg *Config, version string) (*Node, error) {
	log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
	if err != nil {
		return nil, err
	}

	dbLog, err := utils.NewZapLogger(utils.ERROR, cfg.Colour)
	if err != nil {
		return nil, fmt.Errorf("create DB logger: %w", err)
	}

	if cfg.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.DatabasePath = filepath.Join(home, ".starcast")
	}
	database, err := db.New(cfg.DatabasePath, dbLog)
	if err != nil {
		return nil, fmt.Errorf("open DB: %w", err)
	}
	if cfg.Metrics {
		database = database.WithListener(makeDBMetrics())
	}
	ua := fmt.Sprintf("Starcast/%s Vote Ledger", version)

	seq := sequencer.New(database)
	votes := ledger.New(database)
	referrals := referral.NewTracker(database)
	competitions := directory.NewClient(cfg.DirectoryURL).WithUserAgent(ua)
	gateway := payments.NewClient(cfg.PaymentsURL).WithUserAgent(ua)
	casting := voting.New(seq, votes, referrals, competitions, gateway, log)

	services := make([]service.Service, 0)

	apiService, err := makeAPI(cfg.HTTPPort, casting, log)
	if err != nil {
		return nil, err
	}
	services = append(services, apiService)

	if cfg.Metrics {
		prometheus.MustRegister(voting.NewMetricsCollector())
		metricsService, err := makeMetrics(cfg.MetricsPort)
		if err != nil {
			return nil, err
		}
		services = append(services, metricsService)
	}
	if cfg.Pprof {
		pprofService, err := makePPROF(cfg.PprofPort)
		if err != nil {
			return nil, err
		}
		services = append(services, pprofService)
	}

	return &Node{
		cfg:      cfg,
		log:      log,
		version:  version,
		db:       database,
		services: services,
	}, nil
}

// Run starts the node services. All services block and any error returned by
// a service run function is logged. Run waits for all services to return
// before exiting.
func (n *Node) Run(ctx context.Context) {
	defer func() {
		if closeErr := n.db.Close(); closeErr != nil {
			n.log.Errorw("Error while closing the DB", "err", closeErr)
		}
	}()

	n.log.Infow("Starting Starcast...", "version", n.version, "port", n.cfg.HTTPPort)

	ctx, cancel := context.WithCancel(ctx)
	wg := conc.NewWaitGroup()
	for _, s := range n.services {
		s := s
		wg.Go(func() {
			if err := s.Run(ctx); err != nil {
				n.log.Errorw("Service error", "name", reflect.TypeOf(s), "err", err)
				cancel()
			}
		})
	}
	defer wg.Wait()

	<-ctx.Done()
	cancel()
	n.log.Infow("Shutting down Starcast...")
}

func (n *Node) Config() Config {
	return *n.cfg
}
