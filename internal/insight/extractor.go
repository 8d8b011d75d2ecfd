package insight

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/xxxsen/chatwrapped/internal/model"
)

// Placeholder texts used when the backing optional stage did not run.
// These are what the presentation layer renders, so they read as copy,
// not as errors.
const (
	placeholderQuestion = "Embedding-based analysis was not run"
	placeholderTopic    = "Enable embeddings to see topics"
	degradedQuestion    = "Question difficulty analysis did not complete"
	degradedTopic       = "Topic analysis did not complete"
)

// MonthHours is one element of the hours_by_month payload.
type MonthHours struct {
	Month model.MonthKey `json:"month"`
	Hours float64        `json:"hours"`
}

// MonthTopic is one element of the topics_by_month payload.
type MonthTopic struct {
	Month model.MonthKey `json:"month"`
	Topic string         `json:"topic"`
}

type longestPayload struct {
	ConversationID string  `json:"conversation_id"`
	Title          string  `json:"title,omitempty"`
	DurationHours  float64 `json:"duration_hours"`
	MessageCount   int     `json:"message_count"`
}

type outroPayload struct {
	TotalHours    float64 `json:"total_hours"`
	TotalMessages int     `json:"total_messages"`
}

// Extract emits exactly one record per slide index, intro through
// outro, regardless of which optional stages ran. It is a pure function
// of its inputs: no I/O, no clock, no randomness.
func Extract(compression *model.CompressionResult, embeddings *model.EmbeddingResult, analysis *model.AnalysisResult) []model.InsightRecord {
	records := make([]model.InsightRecord, 0, model.SlideOutro-model.SlideIntro+1)
	add := func(slide int, typ string, data interface{}, placeholder bool) {
		records = append(records, model.InsightRecord{
			Slide:       slide,
			Type:        typ,
			Data:        mustJSON(data),
			Placeholder: placeholder,
		})
	}

	// Embeddings present without analysis means the analysis stage ran
	// and was abandoned; the copy should say so rather than tell the
	// user to turn embeddings on.
	questionCopy, topicCopy := placeholderQuestion, placeholderTopic
	if embeddings != nil && analysis == nil {
		questionCopy, topicCopy = degradedQuestion, degradedTopic
	}

	add(model.SlideIntro, model.InsightIntro, nil, false)
	add(model.SlideTotalHours, model.InsightTotalHours, compression.Analytics.TotalHours, false)
	add(model.SlideHoursByMonth, model.InsightHoursByMonth, monthHours(compression), false)
	add(model.SlideHoursByHour, model.InsightHoursByHour, hourCounts(compression), false)
	add(model.SlideLongestConversation, model.InsightLongestConversation, longestPayload{
		ConversationID: compression.Analytics.Longest.ConversationID,
		Title:          compression.Analytics.Longest.Title,
		DurationHours:  compression.Analytics.Longest.DurationHours,
		MessageCount:   compression.Analytics.Longest.MessageCount,
	}, false)

	if analysis != nil && analysis.Easiest != nil {
		add(model.SlideEasiestQuestion, model.InsightEasiestQuestion, analysis.Easiest.Text, false)
	} else {
		add(model.SlideEasiestQuestion, model.InsightEasiestQuestion, questionCopy, true)
	}
	if analysis != nil && analysis.Hardest != nil {
		add(model.SlideHardestQuestion, model.InsightHardestQuestion, analysis.Hardest.Text, false)
	} else {
		add(model.SlideHardestQuestion, model.InsightHardestQuestion, questionCopy, true)
	}

	if analysis != nil && len(analysis.Segments) > 0 {
		add(model.SlideTopTopics, model.InsightTopTopics, topTopics(analysis.Segments, 3), false)
		add(model.SlideTopicsByMonth, model.InsightTopicsByMonth, topicsByMonth(compression, analysis.Segments), false)
		add(model.SlideTopicsByHour, model.InsightTopicsByHour, topicsByHour(analysis.Segments), false)
	} else {
		add(model.SlideTopTopics, model.InsightTopTopics, []string{topicCopy}, true)
		add(model.SlideTopicsByMonth, model.InsightTopicsByMonth, placeholderMonths(compression, topicCopy), true)
		add(model.SlideTopicsByHour, model.InsightTopicsByHour, make([]string, 24), true)
	}

	add(model.SlideOutro, model.InsightOutro, outroPayload{
		TotalHours:    compression.Analytics.TotalHours,
		TotalMessages: compression.Analytics.TotalMessages,
	}, false)
	return records
}

func monthHours(compression *model.CompressionResult) []MonthHours {
	out := make([]MonthHours, 0, len(compression.Buckets))
	for i := range compression.Buckets {
		out = append(out, MonthHours{
			Month: compression.Buckets[i].Month,
			Hours: compression.Buckets[i].Stats.TotalHours,
		})
	}
	return out
}

func hourCounts(compression *model.CompressionResult) []int {
	out := make([]int, 24)
	for hour, count := range compression.Analytics.HourlyDistribution {
		if hour >= 0 && hour < 24 {
			out[hour] = count
		}
	}
	return out
}

// topTopics ranks segments by followup count (the amount of
// back-and-forth they caused), ties broken toward the earliest start.
func topTopics(segments []model.TopicSegment, n int) []string {
	ranked := make([]model.TopicSegment, len(segments))
	copy(ranked, segments)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Metrics.FollowupCount != ranked[j].Metrics.FollowupCount {
			return ranked[i].Metrics.FollowupCount > ranked[j].Metrics.FollowupCount
		}
		return ranked[i].StartUnix < ranked[j].StartUnix
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	labels := make([]string, 0, len(ranked))
	for _, seg := range ranked {
		labels = append(labels, seg.Label)
	}
	return labels
}

func topicsByMonth(compression *model.CompressionResult, segments []model.TopicSegment) []MonthTopic {
	best := map[model.MonthKey]*model.TopicSegment{}
	for i := range segments {
		seg := &segments[i]
		cur, ok := best[seg.Month]
		if !ok || seg.Metrics.FollowupCount > cur.Metrics.FollowupCount ||
			(seg.Metrics.FollowupCount == cur.Metrics.FollowupCount && seg.StartUnix < cur.StartUnix) {
			best[seg.Month] = seg
		}
	}
	out := make([]MonthTopic, 0, len(compression.Buckets))
	for i := range compression.Buckets {
		month := compression.Buckets[i].Month
		entry := MonthTopic{Month: month}
		if seg, ok := best[month]; ok {
			entry.Topic = seg.Label
		}
		out = append(out, entry)
	}
	return out
}

func topicsByHour(segments []model.TopicSegment) []string {
	best := map[int]*model.TopicSegment{}
	for i := range segments {
		seg := &segments[i]
		hour := time.Unix(int64(seg.StartUnix), 0).UTC().Hour()
		cur, ok := best[hour]
		if !ok || seg.Metrics.FollowupCount > cur.Metrics.FollowupCount ||
			(seg.Metrics.FollowupCount == cur.Metrics.FollowupCount && seg.StartUnix < cur.StartUnix) {
			best[hour] = seg
		}
	}
	out := make([]string, 24)
	for hour, seg := range best {
		out[hour] = seg.Label
	}
	return out
}

func placeholderMonths(compression *model.CompressionResult, topic string) []MonthTopic {
	out := make([]MonthTopic, 0, len(compression.Buckets))
	for i := range compression.Buckets {
		out = append(out, MonthTopic{Month: compression.Buckets[i].Month, Topic: topic})
	}
	return out
}

func mustJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		// All payload types above are marshal-safe; this indicates a
		// programming error, not bad input.
		panic(err)
	}
	return data
}
