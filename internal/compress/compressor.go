package compress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	defaultIdleThresholdMin = 30
	defaultTailPaddingMin   = 10
	windowMonths            = 12
)

// CostModel is the per-hour rate table behind the cost proxy. A nil
// model disables cost estimation without failing the stage.
type CostModel struct {
	GPUPerHour         float64
	ElectricityPerHour float64
	DevelopmentPerHour float64
}

type Options struct {
	// IdleThresholdMin ends an active session when the gap between two
	// consecutive messages exceeds it.
	IdleThresholdMin int
	// TailPaddingMin is added per session to cover reading time after
	// the last message.
	TailPaddingMin int
	Cost           *CostModel
}

// Compressor is the Normalizer stage: it windows the archive to the
// trailing 12 calendar months, cleans message text into monthly buckets
// and derives the usage analytics.
type Compressor struct {
	opts Options
}

func New(opts Options) *Compressor {
	if opts.IdleThresholdMin <= 0 {
		opts.IdleThresholdMin = defaultIdleThresholdMin
	}
	if opts.TailPaddingMin < 0 {
		opts.TailPaddingMin = defaultTailPaddingMin
	}
	return &Compressor{opts: opts}
}

// Compress produces the CompressionResult for one archive. The window
// ends at the month of the newest message in the archive, not "now", so
// the output is deterministic given fixed input.
func (c *Compressor) Compress(ctx context.Context, archive *model.Archive) (*model.CompressionResult, error) {
	if archive == nil || len(archive.Conversations) == 0 {
		return nil, errs.ErrNoConversations
	}

	newest := 0.0
	for i := range archive.Conversations {
		for _, m := range archive.Conversations[i].Messages {
			if m.Timestamp > newest {
				newest = m.Timestamp
			}
		}
	}
	if newest == 0 {
		return nil, errs.ErrNoConversations
	}

	newestMonth := monthStart(newest)
	windowStart := newestMonth.AddDate(0, -(windowMonths - 1), 0)
	cutoff := float64(windowStart.Unix())

	months := make([]model.MonthKey, 0, windowMonths)
	bucketIdx := make(map[model.MonthKey]int, windowMonths)
	for i := 0; i < windowMonths; i++ {
		key := model.MonthKey(windowStart.AddDate(0, i, 0).Format("2006-01"))
		bucketIdx[key] = i
		months = append(months, key)
	}

	result := &model.CompressionResult{
		Buckets:      make([]model.MonthlyBucket, windowMonths),
		CutoffUnix:   cutoff,
		NewestUnix:   newest,
		SkippedConvs: archive.SkippedConvs,
		SkippedMsgs:  archive.SkippedMsgs,
	}
	for i, key := range months {
		result.Buckets[i] = model.MonthlyBucket{
			Month: key,
			Stats: model.MonthStats{PeakHour: -1, HourlyDistribution: map[int]int{}},
		}
	}

	globalHourly := map[int]int{}
	usedConvs := 0
	var longest model.LongestConversation

	for ci := range archive.Conversations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conv := &archive.Conversations[ci]
		inWindow := make([]model.Message, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			if m.Timestamp >= cutoff && m.Timestamp <= newest {
				inWindow = append(inWindow, m)
			}
		}
		if len(inWindow) == 0 {
			continue
		}
		usedConvs++

		convHours := c.activeHours(inWindow)
		if convHours > longest.DurationHours {
			longest = model.LongestConversation{
				ConversationID: conv.ID,
				Title:          conv.Title,
				DurationHours:  round2(convHours),
				MessageCount:   len(inWindow),
			}
		}

		// Split the conversation's messages per month so bucket hours
		// only count activity inside that month.
		perMonth := map[model.MonthKey][]model.Message{}
		for _, m := range inWindow {
			key := model.MonthKey(time.Unix(int64(m.Timestamp), 0).UTC().Format("2006-01"))
			perMonth[key] = append(perMonth[key], m)
		}
		for key, msgs := range perMonth {
			idx, ok := bucketIdx[key]
			if !ok {
				continue
			}
			bucket := &result.Buckets[idx]
			bucket.Stats.TotalHours += c.activeHours(msgs)
			bucket.Stats.ConversationCount++
			for _, m := range msgs {
				hour := time.Unix(int64(m.Timestamp), 0).UTC().Hour()
				bucket.Stats.HourlyDistribution[hour]++
				globalHourly[hour]++
				bucket.Messages = append(bucket.Messages, model.CompressedMessage{
					ID:             m.ID,
					ConversationID: m.ConversationID,
					Role:           m.Role,
					Content:        m.Content,
					Cleaned:        cleanText(plainText(m.Content)),
					Timestamp:      m.Timestamp,
				})
			}
		}
	}
	if usedConvs == 0 {
		return nil, fmt.Errorf("%w: nothing within the trailing %d months", errs.ErrNoConversations, windowMonths)
	}

	peakMonth := months[0]
	peakHours := -1.0
	for i := range result.Buckets {
		bucket := &result.Buckets[i]
		sort.SliceStable(bucket.Messages, func(a, b int) bool {
			return bucket.Messages[a].Timestamp < bucket.Messages[b].Timestamp
		})
		bucket.Stats.TotalHours = round2(bucket.Stats.TotalHours)
		bucket.Stats.MessageCount = len(bucket.Messages)
		bucket.Stats.PeakHour, bucket.Stats.PeakHourMessages = peakHour(bucket.Stats.HourlyDistribution)
		if bucket.Stats.TotalHours > peakHours {
			peakHours = bucket.Stats.TotalHours
			peakMonth = bucket.Month
		}
		result.Analytics.TotalHours += bucket.Stats.TotalHours
		result.Analytics.TotalMessages += bucket.Stats.MessageCount
	}

	result.Analytics.TotalHours = round2(result.Analytics.TotalHours)
	result.Analytics.TotalConversations = usedConvs
	result.Analytics.PeakMonth = peakMonth
	result.Analytics.PeakUsageHour, result.Analytics.PeakUsageMessages = peakHour(globalHourly)
	result.Analytics.HourlyDistribution = globalHourly
	result.Analytics.Longest = longest
	if c.opts.Cost != nil {
		perHour := c.opts.Cost.GPUPerHour + c.opts.Cost.ElectricityPerHour + c.opts.Cost.DevelopmentPerHour
		result.Analytics.Cost = &model.CostBreakdown{
			GPUPerHour:         c.opts.Cost.GPUPerHour,
			ElectricityPerHour: c.opts.Cost.ElectricityPerHour,
			DevelopmentPerHour: c.opts.Cost.DevelopmentPerHour,
			TotalPerHour:       perHour,
			EstimatedUSD:       round2(result.Analytics.TotalHours * perHour),
		}
	}

	logutil.GetLogger(ctx).Info("compression complete",
		zap.Int("conversations", usedConvs),
		zap.Int("messages", result.Analytics.TotalMessages),
		zap.Float64("total_hours", result.Analytics.TotalHours),
		zap.String("peak_month", string(peakMonth)),
	)
	return result, nil
}

// activeHours sessionizes messages by the idle threshold and sums the
// session spans plus tail padding, so overnight gaps do not inflate
// usage time.
func (c *Compressor) activeHours(msgs []model.Message) float64 {
	if len(msgs) == 0 {
		return 0
	}
	padding := float64(c.opts.TailPaddingMin) * 60
	if len(msgs) == 1 {
		return padding / 3600
	}
	sorted := make([]model.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	idle := float64(c.opts.IdleThresholdMin) * 60
	total := 0.0
	sessionStart := sorted[0].Timestamp
	prev := sorted[0].Timestamp
	for _, m := range sorted[1:] {
		if m.Timestamp-prev > idle {
			total += prev - sessionStart + padding
			sessionStart = m.Timestamp
		}
		prev = m.Timestamp
	}
	total += prev - sessionStart + padding
	return total / 3600
}

func peakHour(dist map[int]int) (int, int) {
	best, bestCount := -1, 0
	for hour := 0; hour < 24; hour++ {
		if count := dist[hour]; count > bestCount {
			best, bestCount = hour, count
		}
	}
	return best, bestCount
}

func monthStart(unix float64) time.Time {
	t := time.Unix(int64(unix), 0).UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
