package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueReceipts = "jobs:receipts"
	QueueAlerts   = "jobs:alerts"
)

// Job types.
const (
	JobReceipt     = "receipt"
	JobExpiryAlert = "expiry_alert"
)

// MaxAttempts is how many times a job runs before it lands in the DLQ.
const MaxAttempts = 3

// popTimeout bounds each BRPOP so workers notice shutdown.
const popTimeout = 5 * time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// ReceiptPayload asks for the receipt of a sale to be mailed to Email.
type ReceiptPayload struct {
	SaleID uint   `json:"sale_id"`
	Email  string `json:"email"`
}

// AlertPayload is a plain-text email for staff.
type AlertPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueReceipt pushes a receipt email job.
func (d *Dispatcher) EnqueueReceipt(ctx context.Context, saleID uint, email string) error {
	return d.enqueue(ctx, QueueReceipts, JobReceipt, ReceiptPayload{SaleID: saleID, Email: email})
}

// EnqueueExpiryAlert pushes a staff alert email job.
func (d *Dispatcher) EnqueueExpiryAlert(ctx context.Context, alert AlertPayload) error {
	return d.enqueue(ctx, QueueAlerts, JobExpiryAlert, alert)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// HandlerFunc processes one job payload. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

// Permanent wraps err so the pool sends the job straight to the DLQ.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", errPermanent, err)
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]HandlerFunc
	queues   []string
}

func NewPool(rdb *redis.Client) *Pool {
	return &Pool{
		rdb:      rdb,
		handlers: map[string]HandlerFunc{},
		queues:   []string{QueueReceipts, QueueAlerts},
	}
}

// Handle registers fn for jobType. Call before Start.
func (p *Pool) Handle(jobType string, fn HandlerFunc) {
	p.handlers[jobType] = fn
}

// Start launches numWorkers goroutines consuming every queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			if _, err := p.processNext(ctx, popTimeout); err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Error().Err(err).Int("worker", id).Msg("worker: pop failed")
				time.Sleep(time.Second)
			}
		}
	}
}

// processNext pops one job, waiting up to timeout. It reports whether a job
// was handled; redis.Nil means the queues stayed empty.
func (p *Pool) processNext(ctx context.Context, timeout time.Duration) (bool, error) {
	result, err := p.rdb.BRPop(ctx, timeout, p.queues...).Result()
	if err != nil {
		return false, err
	}
	if len(result) < 2 {
		return false, nil
	}
	p.processJob(ctx, result[0], result[1])
	return true, nil
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, queue, "", quoted, "malformed envelope", 0)
		return
	}

	handler, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "no handler registered", job.Attempts)
		return
	}

	job.Attempts++
	err := handler(ctx, job.Payload)
	if err == nil {
		log.Info().Str("type", job.Type).Str("queue", queue).Int("attempt", job.Attempts).Msg("job done")
		return
	}

	if errors.Is(err, errPermanent) || job.Attempts >= MaxAttempts {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}

	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
	if err := push(ctx, p.rdb, queue, job); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("failed to requeue job")
	}
}
