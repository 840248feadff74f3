package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/workstock/internal/config"
	"github.com/Spok95/workstock/internal/domain/ledger"
	"github.com/Spok95/workstock/internal/domain/materials"
	"github.com/Spok95/workstock/internal/domain/orders"
	"github.com/Spok95/workstock/internal/infra/alerts"
	"github.com/Spok95/workstock/internal/infra/db"
	httpx "github.com/Spok95/workstock/internal/infra/http"
	"github.com/Spok95/workstock/internal/infra/logger"
	"github.com/Spok95/workstock/internal/workorders"
)

const usage = `usage: workstock <command> [flags]

commands:
  serve            health + metrics endpoint (default)
  migrate          apply migrations and exit
  create-material  --name --sku --cost [--unit --stock --threshold --supplier --location]
  list-materials   [--low]
  set-stock        --material --stock
  create-order     --service-type --address [--description --priority --due]
  list-orders
  add-material     --order --material --qty
  remove-material  --entry --material --qty
  remove-entry     --entry
  set-quantity     --entry --qty
  recompute        --order --labor
  send-budget      --order
  approve-budget   --order
  reject-budget    --order
  set-status       --order --status
  show             --order
  export-budget    --order [--out]
`

type flags struct {
	config   string
	order    int64
	material int64
	entry    int64
	qty      string
	labor    string
	status   string
	out      string

	name      string
	sku       string
	unit      string
	cost      string
	stock     int64
	threshold int64
	supplier  string
	location  string
	low       bool

	serviceType string
	address     string
	description string
	priority    string
	due         string
}

func main() {
	var f flags
	fs := pflag.NewFlagSet("workstock", pflag.ExitOnError)
	fs.StringVarP(&f.config, "config", "c", "config/example.yaml", "path to the YAML config")
	fs.Int64Var(&f.order, "order", 0, "order id")
	fs.Int64Var(&f.material, "material", 0, "material id")
	fs.Int64Var(&f.entry, "entry", 0, "order material entry id")
	fs.StringVar(&f.qty, "qty", "", "quantity")
	fs.StringVar(&f.labor, "labor", "", "labor cost, e.g. 150.00 or 150,00")
	fs.StringVar(&f.status, "status", "", "order status")
	fs.StringVarP(&f.out, "out", "o", "", "output .xlsx path")
	fs.StringVar(&f.name, "name", "", "material name")
	fs.StringVar(&f.sku, "sku", "", "material sku")
	fs.StringVar(&f.unit, "unit", "un", "material unit")
	fs.StringVar(&f.cost, "cost", "", "material unit cost")
	fs.Int64Var(&f.stock, "stock", -1, "quantity on hand")
	fs.Int64Var(&f.threshold, "threshold", 0, "reorder threshold, 0 disables the alert")
	fs.StringVar(&f.supplier, "supplier", "", "material supplier")
	fs.StringVar(&f.location, "location", "", "material location")
	fs.BoolVar(&f.low, "low", false, "only materials at or under the reorder threshold")
	fs.StringVar(&f.serviceType, "service-type", "", "order service type")
	fs.StringVar(&f.address, "address", "", "order address")
	fs.StringVar(&f.description, "description", "", "order description")
	fs.StringVar(&f.priority, "priority", "", "low, medium, high or urgent")
	fs.StringVar(&f.due, "due", "", "order due date, YYYY-MM-DD")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cmd := "serve"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = db.Migrate(cfg.Postgres.DSN, log)
	default:
		run, ok := commands[cmd]
		if !ok {
			fs.Usage()
			os.Exit(2)
		}
		err = withApp(ctx, cfg, log, func(a app) error {
			return run(ctx, a, f, os.Stdout)
		})
	}
	if err != nil {
		var ie *workorders.InconsistencyError
		if errors.As(err, &ie) {
			fmt.Fprintf(os.Stderr, "CRITICAL: stock and order materials diverged, incident %s; do not retry\n", ie.IncidentID)
		}
		log.Error("command failed", "cmd", cmd, "err", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres.DSN, log); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	log.Info("db connected")

	alerter, err := newAlerter(cfg, log)
	if err != nil {
		return err
	}
	low, err := materials.NewRepo(pool).ListLowStock(ctx)
	if err != nil {
		log.Warn("low stock check failed", "err", err)
	}
	for _, m := range low {
		alerter.LowStock(ctx, m)
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		gatherer = reg
	}
	srv := httpx.New(cfg.HTTP.Addr, pool, gatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server started", "addr", cfg.HTTP.Addr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("graceful shutdown complete")
	return err
}

// withApp connects to Postgres and builds the engine and stores for one command.
func withApp(ctx context.Context, cfg config.Config, log *slog.Logger, fn func(app) error) error {
	pool, err := db.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	alerter, err := newAlerter(cfg, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	err = fn(app{
		svc:       newService(pool, cfg, log, alerter, workorders.NewMetrics(reg)),
		materials: materials.NewRepo(pool),
		orders:    orders.NewRepo(pool),
	})

	if cfg.Metrics.PushURL != "" {
		// failures are still counted, so push either way
		if perr := push.New(cfg.Metrics.PushURL, "workstock").Gatherer(reg).AddContext(ctx); perr != nil {
			log.Warn("metrics push failed", "url", cfg.Metrics.PushURL, "err", perr)
		}
	}
	return err
}

func newService(pool *pgxpool.Pool, cfg config.Config, log *slog.Logger, a workorders.Alerter, m *workorders.Metrics) *workorders.Service {
	return workorders.New(workorders.Deps{
		Materials:   materials.NewRepo(pool),
		Orders:      orders.NewRepo(pool),
		Ledger:      ledger.NewRepo(pool),
		Locker:      db.NewAdvisoryLocker(pool, log),
		Alerter:     a,
		Metrics:     m,
		Log:         log,
		LockTimeout: cfg.Engine.LockTimeout,
	})
}

func newAlerter(cfg config.Config, log *slog.Logger) (workorders.Alerter, error) {
	if cfg.Telegram.Token == "" {
		log.Debug("telegram token not set, alerts go to the log")
		return alerts.NewLog(log), nil
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	log.Info("telegram alerts enabled", "bot", api.Self.UserName, "chat_id", cfg.Telegram.AlertChatID)
	return alerts.NewTelegram(api, cfg.Telegram.AlertChatID, log), nil
}
