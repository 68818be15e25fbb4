// Package sweeper corre tareas periódicas de mantenimiento: purga de nonces
// expirados y reconciliación de transacciones colgadas en Broadcasting.
package sweeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

const runTimeout = 30 * time.Second

// Task es una tarea periódica. Run devuelve cuántos elementos procesó.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Sweeper ejecuta un conjunto de Tasks, cada una con su ticker.
type Sweeper struct {
	tasks []Task
}

func New(tasks ...Task) *Sweeper {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Run == nil || t.Interval <= 0 {
			continue
		}
		out = append(out, t)
	}
	return &Sweeper{tasks: out}
}

// Tasks devuelve las tareas habilitadas.
func (s *Sweeper) Tasks() []Task { return s.tasks }

// Run bloquea hasta que ctx se cancele. Un error de una pasada se loguea y
// no detiene el loop.
func (s *Sweeper) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			loop(gctx, t)
			return nil
		})
	}
	return g.Wait()
}

func loop(ctx context.Context, t Task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunOnce(ctx, t)
		}
	}
}

// RunOnce ejecuta una pasada de t con timeout propio.
func RunOnce(ctx context.Context, t Task) (int64, error) {
	rctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	log := logger.From(ctx).With(logger.Op("sweeper." + t.Name))
	n, err := t.Run(rctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("sweep failed", logger.Err(err))
		}
		return n, err
	}
	if n > 0 {
		log.Debug("sweep done", zap.Int64("count", n))
	}
	return n, nil
}

// NonceTask purga los nonces con ExpiresAt < now.
func NonceTask(nonces repository.NonceRepository, interval time.Duration, now func() time.Time) Task {
	if now == nil {
		now = time.Now
	}
	return Task{
		Name:     "nonces",
		Interval: interval,
		Run: func(ctx context.Context) (int64, error) {
			n, err := nonces.DeleteExpired(ctx, now())
			if err != nil {
				return 0, err
			}
			metrics.NoncesSwept.Add(float64(n))
			return n, nil
		},
	}
}
