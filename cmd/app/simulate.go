package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"trade_sim/internal/app"
	"trade_sim/internal/domain"
	"trade_sim/internal/engine"
	"trade_sim/internal/infra"
	"trade_sim/internal/infra/cache/redis"
	"trade_sim/internal/service"

	"github.com/spf13/cobra"
)

type simulateFlags struct {
	book      string
	fromRedis bool
	params    domain.SimulateParams
}

func newSimulateCmd(configPath *string) *cobra.Command {
	f := simulateFlags{params: domain.DefaultSimulateParams()}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Estimate the cost of one order offline",
		Long: "Replays feed records from --book (a JSON record or array of records) " +
			"or reads the latest mirrored snapshot from Redis, then prints the cost estimate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (f.book == "") == !f.fromRedis {
				return fmt.Errorf("exactly one of --book or --from-redis is required")
			}
			cfg, _, err := infra.LoadConfigOrDefault(*configPath)
			if err != nil {
				return err
			}
			est, err := runSimulate(cmd.Context(), cfg, f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(est)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.book, "book", "", "feed record file (JSON object or array)")
	fl.BoolVar(&f.fromRedis, "from-redis", false, "use the latest snapshot mirrored in Redis")
	fl.Float64Var(&f.params.Quantity, "quantity", domain.DefaultQuantity, "order size in USD")
	fl.Float64Var(&f.params.Volatility, "volatility", domain.DefaultVolatility, "volatility (sigma)")
	fl.StringVar(&f.params.FeeTier, "fee-tier", domain.DefaultFeeTier, "fee tier")
	fl.StringVar(&f.params.OrderType, "order-type", domain.DefaultOrderType, "order type")
	return cmd
}

func runSimulate(ctx context.Context, cfg *infra.Config, f simulateFlags) (domain.CostEstimate, error) {
	var book service.SnapshotSource
	if f.fromRedis {
		snap, err := redisSnapshot(ctx, cfg)
		if err != nil {
			return domain.CostEstimate{}, err
		}
		book = staticBook{snap}
	} else {
		eng, err := replayBook(cfg, f.book)
		if err != nil {
			return domain.CostEstimate{}, err
		}
		book = eng
	}

	p := f.params
	p.Exchange = cfg.Engine.Exchange
	p.Symbol = cfg.Engine.Symbol

	sim := service.NewSimulator(book, nil, app.SimulatorConfig(cfg), nil, nil)
	return sim.Simulate(ctx, p)
}

// replayBook applies every record in path to a fresh engine. Rejected records
// are reported and skipped.
func replayBook(cfg *infra.Config, path string) (*engine.OrderBookEngine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := decodeRecords(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	eng := engine.NewOrderBookEngine(cfg.Engine.Exchange, cfg.Engine.Symbol, 1, nil, nil, nil)
	for i, rec := range records {
		if _, err := eng.Update(rec); err != nil {
			fmt.Fprintf(os.Stderr, "record %d skipped: %v\n", i, err)
		}
	}
	return eng, nil
}

func decodeRecords(r io.Reader) ([]domain.FeedRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '[' {
		var records []domain.FeedRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var rec domain.FeedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return []domain.FeedRecord{rec}, nil
}

func redisSnapshot(ctx context.Context, cfg *infra.Config) (*domain.Snapshot, error) {
	pub, err := redis.NewPublisher(ctx, redis.ClientConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		Timeout:  time.Duration(cfg.Redis.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	defer pub.Close()
	return pub.Latest(ctx, cfg.Engine.Symbol)
}

type staticBook struct{ snap *domain.Snapshot }

func (b staticBook) Latest() *domain.Snapshot { return b.snap }
