// Command statebench runs a synthetic read/write workload against a shared
// state store and exposes Prometheus metrics, a /state snapshot endpoint and
// optional pprof.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/sharedstate/codec"
	zaplog "github.com/IvanBrykalov/sharedstate/logging/zap"
	pmet "github.com/IvanBrykalov/sharedstate/metrics/prom"
	"github.com/IvanBrykalov/sharedstate/state"
)

func main() {
	// ---- Flags ----
	var (
		shards = flag.Int("shards", 0, "number of record-map shards (0=auto)")

		workers    = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration   = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct    = flag.Int("reads", 80, "read percentage [0..100]")
		pendingPct = flag.Int("pending", 10, "share of writes that store a pending value [0..100]")
		delay      = flag.Duration("delay", 5*time.Millisecond, "settle delay of pending values")

		keys  = flag.Int("keys", 10_000, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		httpAddr  = flag.String("http", ":8080", "serve /metrics and /state at addr")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// ---- Logger ----
	zc := zap.NewProductionConfig()
	if *verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zl, err := zc.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			zl.Info("pprof: serving", zap.String("addr", *pprofAddr))
			zl.Info("pprof: stopped", zap.Error(http.ListenAndServe(*pprofAddr, nil)))
		}()
	}

	// ---- Build store ----
	metrics := pmet.New(nil, "sharedstate", "bench", nil)
	s := state.New(state.Options{
		Shards:       *shards,
		Logger:       zaplog.Logger{L: zl},
		Metrics:      metrics,
		QueryMetrics: metrics,
	})
	defer func() { _ = s.Close() }()

	// ---- HTTP: /metrics and /state ----
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/state", snapshotHandler(s))
	go func() {
		zl.Info("http: serving", zap.String("addr", *httpAddr))
		zl.Info("http: stopped", zap.Error(http.ListenAndServe(*httpAddr, mux)))
	}()

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	pendingPctVal := *pendingPct
	delayVal := *delay
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, loading, writes, pendingWrites, failed uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)
			def := state.Initial(state.Concrete(0))

			for {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				k := state.KeyOf("k", strconv.FormatUint(localZipf.Uint64(), 10))
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, _, st := state.Use(gctx, s, k, def); st.Loading {
						atomic.AddUint64(&loading, 1)
					}
					continue
				}

				// writes go through a read so the key always has a record
				_, set, _ := state.Use(gctx, s, k, def)
				n := localR.Int()
				var v state.Value[int]
				if int(localR.Int31n(100)) < pendingPctVal {
					atomic.AddUint64(&pendingWrites, 1)
					v = state.Pending(state.After(clockz.RealClock, delayVal, func() (int, error) { return n, nil }))
				} else {
					v = state.Concrete(n)
				}
				atomic.AddUint64(&writes, 1)
				if err := set(gctx, state.To(v)); err != nil {
					atomic.AddUint64(&failed, 1)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		zl.Error("workload failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	// ---- Report ----
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	ops := readsN + writesN
	st := s.Stats()

	fmt.Printf("shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		*shards, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d (loading=%d)  writes=%d (pending=%d, failed=%d)\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, atomic.LoadUint64(&loading),
		writesN, atomic.LoadUint64(&pendingWrites), atomic.LoadUint64(&failed))
	fmt.Printf("records=%d  shard reads=%d  shard writes=%d\n", st.Records, st.Reads, st.Writes)
}

// snapshotHandler serves Store.Snapshot encoded per ?format=json|cbor|msgpack|protobuf.
func snapshotHandler(s *state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ctype, err := codec.Snapshot(codec.Format(r.URL.Query().Get("format")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, err := c.Encode(s.Snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", ctype)
		_, _ = w.Write(b)
	}
}
