package analyze

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// segmentJob carries one conversation through the pool.
type segmentJob struct {
	conv conversationView
}

type segmentOutcome struct {
	conv     conversationView
	segments []model.TopicSegment
	err      error
}

// runSegmentPool fans conversations out over a bounded worker pool. All
// workers read the shared matrix through views; nothing is copied per
// worker. A job that panics is retried once; jobs still failing after
// the retry are re-run on a pool half the size, and only dropped (with
// a log line) when even a single worker cannot process them. Result
// order is normalized by the caller, so scheduling order is free.
func runSegmentPool(ctx context.Context, workers int, convs []conversationView, run func(conversationView) []model.TopicSegment) []model.TopicSegment {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(convs) {
		workers = len(convs)
	}
	if workers < 1 {
		workers = 1
	}

	pending := convs
	var collected []model.TopicSegment
	for {
		var failed []conversationView
		results := dispatch(ctx, workers, pending, run)
		for _, res := range results {
			if res.err != nil {
				failed = append(failed, res.conv)
				continue
			}
			collected = append(collected, res.segments...)
		}
		if len(failed) == 0 {
			return collected
		}
		if workers == 1 {
			for _, conv := range failed {
				logutil.GetLogger(ctx).Error("conversation skipped after repeated worker failure",
					zap.String("conversation_id", conv.id))
			}
			return collected
		}
		workers /= 2
		if workers < 1 {
			workers = 1
		}
		logutil.GetLogger(ctx).Warn("degrading segmentation worker count",
			zap.Int("workers", workers), zap.Int("failed_jobs", len(failed)))
		pending = failed
	}
}

func dispatch(ctx context.Context, workers int, convs []conversationView, run func(conversationView) []model.TopicSegment) []segmentOutcome {
	jobs := make(chan segmentJob)
	results := make(chan segmentOutcome, len(convs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- attempt(job.conv, run)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, conv := range convs {
			select {
			case jobs <- segmentJob{conv: conv}:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
	close(results)

	out := make([]segmentOutcome, 0, len(convs))
	for res := range results {
		out = append(out, res)
	}
	return out
}

// attempt runs one job, converting a panic into an error and retrying
// once in place before reporting failure.
func attempt(conv conversationView, run func(conversationView) []model.TopicSegment) (out segmentOutcome) {
	for try := 0; try < 2; try++ {
		segments, err := safeRun(conv, run)
		if err == nil {
			return segmentOutcome{conv: conv, segments: segments}
		}
		out = segmentOutcome{conv: conv, err: err}
	}
	return out
}

func safeRun(conv conversationView, run func(conversationView) []model.TopicSegment) (segments []model.TopicSegment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("segmentation worker panic: %v", r)
		}
	}()
	return run(conv), nil
}
