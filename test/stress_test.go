package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"collabflow/contract"
	"collabflow/test/actors"
	"collabflow/test/chaos"
	"collabflow/test/infra"
	"collabflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestContractSigningConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	rng := rand.New(rand.NewSource(seed))

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	seedData := mustSeed(t, ctx, pool, rng)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// proposers and accepters feeding the contract pipeline
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error {
			return actors.Proposer(ctx2, pool, seedData.chatroomID, seedData.brandID, stop)
		})
		g.Go(func() error {
			return actors.Accepter(ctx2, pool, seedData.chatroomID, seedData.brandID, seedData.creatorID, seedData.creatorID, stop)
		})
	}

	// both parties racing over the same signature slots
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error {
			return actors.Signer(ctx2, pool, contract.RoleBrand, seedData.brandID, stop)
		})
		g.Go(func() error {
			return actors.Signer(ctx2, pool, contract.RoleCreator, seedData.creatorID, stop)
		})
	}

	g.Go(func() error {
		return actors.DuplicateCreator(ctx2, pool, seedData.chatroomID, seedData.brandID, seedData.creatorID, stop)
	})
	g.Go(func() error {
		return actors.IdempotentCaller(ctx2, pool, fmt.Sprintf("sign-%s", seedData.chatroomID), stop)
	})
	g.Go(func() error { return actors.OutboxWorker(ctx2, pool, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type seedIDs struct {
	brandID    string
	creatorID  string
	chatroomID string
}

func mustSeed(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rng *rand.Rand) seedIDs {
	t.Helper()
	var s seedIDs
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role)
                                   VALUES ($1,'Stress Brand','x','brand') RETURNING id`,
		fmt.Sprintf("brand%d@example.com", rng.Int63())).Scan(&s.brandID); err != nil {
		t.Fatalf("seed brand: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role)
                                   VALUES ($1,'Stress Creator','x','creator') RETURNING id`,
		fmt.Sprintf("creator%d@example.com", rng.Int63())).Scan(&s.creatorID); err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO chatrooms (brand_id, creator_id) VALUES ($1,$2) RETURNING id`,
		s.brandID, s.creatorID).Scan(&s.chatroomID); err != nil {
		t.Fatalf("seed chatroom: %v", err)
	}
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"contracts", `SELECT id, status, brand_signed_at, creator_signed_at, integrity_hash FROM contracts ORDER BY created_at DESC LIMIT 50`},
		{"contract_events", `SELECT id, contract_id, seq, type, created_at FROM contract_events ORDER BY created_at DESC LIMIT 50`},
		{"quotations", `SELECT id, status, product, amount FROM quotations ORDER BY created_at DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
