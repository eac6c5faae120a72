package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tallyboard/internal/models"
	"tallyboard/internal/repository"
)

// MirrorOp selects what a task does to the relational mirror
type MirrorOp int

const (
	// OpUpsert mirrors a created or updated entry
	OpUpsert MirrorOp = iota
	// OpDelete removes a mirrored entry by id
	OpDelete
	// OpReplace swaps the whole mirror for the snapshot in Entries
	OpReplace
)

// MirrorTask represents one unit of asynchronous mirror work
type MirrorTask struct {
	Op      MirrorOp
	Entry   models.Entry
	Entries []models.Entry
}

// WorkerPool manages a pool of workers for asynchronous mirror writes
type WorkerPool struct {
	jobs        chan MirrorTask
	workerCount int
	mirror      *repository.MirrorRepository
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, mirror *repository.MirrorRepository) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:        make(chan MirrorTask, queueSize),
		workerCount: workerCount,
		mirror:      mirror,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	log.Printf("Starting mirror worker pool with %d workers and queue size %d", wp.workerCount, cap(wp.jobs))

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// worker is the main worker loop that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

// processTask handles a single mirror task with error recovery
func (wp *WorkerPool) processTask(workerID int, task MirrorTask) {
	// Recover from panics to prevent worker crash
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker #%d PANIC recovered: %v", workerID, r)
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch task.Op {
	case OpUpsert:
		err = wp.mirror.UpsertEntry(ctx, task.Entry)
	case OpDelete:
		err = wp.mirror.DeleteEntry(ctx, task.Entry.ID)
	case OpReplace:
		err = wp.mirror.ReplaceAll(ctx, task.Entries)
	default:
		err = fmt.Errorf("unknown mirror op %d", task.Op)
	}

	processingTime := time.Since(startTime)

	if err != nil {
		log.Printf("Worker #%d failed mirror op %d: %v (took %v)",
			workerID, task.Op, err, processingTime)
		wp.metrics.incrementFailed()
		return
	}

	wp.metrics.recordSuccess(processingTime)
}

// Submit attempts to add a task to the queue with backpressure handling.
// The mirror is best-effort: a dropped task never fails the mutation that
// produced it, since the key-value blob is already saved.
func (wp *WorkerPool) Submit(task MirrorTask) error {
	select {
	case wp.jobs <- task:
		return nil

	default:
		log.Printf("BACKPRESSURE WARNING: queue full, dropping mirror write (op %d)", task.Op)
		wp.metrics.incrementBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

// Shutdown gracefully stops the worker pool
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	log.Printf("Shutting down mirror worker pool...")

	// Close the job channel to signal no more jobs will be added
	close(wp.jobs)

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.printMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel()
		log.Printf("Worker pool shutdown timed out after %v", timeout)
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return map[string]interface{}{
		"processed":           wp.metrics.processed,
		"failed":              wp.metrics.failed,
		"backpressure_events": wp.metrics.backpressure,
		"avg_processing_time": avgProcessing.String(),
		"queue_utilization":   fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

// printMetrics logs the final metrics
func (wp *WorkerPool) printMetrics() {
	metrics := wp.GetMetrics()
	log.Printf("Mirror Worker Pool Metrics:")
	log.Printf("   - Processed: %v", metrics["processed"])
	log.Printf("   - Failed: %v", metrics["failed"])
	log.Printf("   - Backpressure Events: %v", metrics["backpressure_events"])
	log.Printf("   - Avg Processing Time: %v", metrics["avg_processing_time"])
}

// Metrics helper methods
func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
