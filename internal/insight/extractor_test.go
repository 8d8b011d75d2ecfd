package insight

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xxxsen/chatwrapped/internal/model"
)

func testCompression() *model.CompressionResult {
	result := &model.CompressionResult{
		Buckets: make([]model.MonthlyBucket, 12),
		Analytics: model.CompressionAnalytics{
			TotalHours:         42.5,
			TotalMessages:      800,
			TotalConversations: 60,
			HourlyDistribution: map[int]int{9: 100, 22: 300},
			Longest: model.LongestConversation{
				ConversationID: "c9", Title: "the long one", DurationHours: 6.5, MessageCount: 120,
			},
		},
	}
	months := []model.MonthKey{
		"2024-07", "2024-08", "2024-09", "2024-10", "2024-11", "2024-12",
		"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06",
	}
	for i, m := range months {
		result.Buckets[i].Month = m
		result.Buckets[i].Stats.TotalHours = float64(i)
	}
	return result
}

func slideMap(t *testing.T, records []model.InsightRecord) map[int]model.InsightRecord {
	t.Helper()
	out := map[int]model.InsightRecord{}
	for _, rec := range records {
		_, dup := out[rec.Slide]
		require.False(t, dup, "duplicate slide %d", rec.Slide)
		out[rec.Slide] = rec
	}
	return out
}

func TestExtractOneRecordPerSlide(t *testing.T) {
	records := Extract(testCompression(), nil, nil)
	require.Len(t, records, 11)

	bySlide := slideMap(t, records)
	for slide := model.SlideIntro; slide <= model.SlideOutro; slide++ {
		require.Contains(t, bySlide, slide, "missing slide %d", slide)
	}
	require.Equal(t, model.InsightIntro, bySlide[model.SlideIntro].Type)
	require.Equal(t, model.InsightOutro, bySlide[model.SlideOutro].Type)
}

func TestExtractPlaceholdersWithoutAnalysis(t *testing.T) {
	records := Extract(testCompression(), nil, nil)
	bySlide := slideMap(t, records)

	for _, slide := range []int{
		model.SlideEasiestQuestion, model.SlideHardestQuestion,
		model.SlideTopTopics, model.SlideTopicsByMonth, model.SlideTopicsByHour,
	} {
		require.True(t, bySlide[slide].Placeholder, "slide %d should be a placeholder", slide)
	}
	for _, slide := range []int{
		model.SlideIntro, model.SlideTotalHours, model.SlideHoursByMonth,
		model.SlideHoursByHour, model.SlideLongestConversation, model.SlideOutro,
	} {
		require.False(t, bySlide[slide].Placeholder, "slide %d should not be a placeholder", slide)
	}
}

func TestExtractDegradedAnalysisCopy(t *testing.T) {
	embeddings := &model.EmbeddingResult{Provider: "local", Dimensions: 2}

	// Embeddings present, analysis absent: the run got vectors but the
	// analysis stage gave up, so the copy must not blame embeddings.
	records := Extract(testCompression(), embeddings, nil)
	bySlide := slideMap(t, records)

	var question string
	require.NoError(t, json.Unmarshal(bySlide[model.SlideHardestQuestion].Data, &question))
	require.Equal(t, degradedQuestion, question)
	require.True(t, bySlide[model.SlideHardestQuestion].Placeholder)

	var top []string
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTopTopics].Data, &top))
	require.Equal(t, []string{degradedTopic}, top)

	var byMonth []MonthTopic
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTopicsByMonth].Data, &byMonth))
	require.Equal(t, degradedTopic, byMonth[0].Topic)

	// Without embeddings the copy points at the missing feature instead.
	records = Extract(testCompression(), nil, nil)
	bySlide = slideMap(t, records)
	require.NoError(t, json.Unmarshal(bySlide[model.SlideHardestQuestion].Data, &question))
	require.Equal(t, placeholderQuestion, question)
}

func TestExtractUsageSlides(t *testing.T) {
	records := Extract(testCompression(), nil, nil)
	bySlide := slideMap(t, records)

	var totalHours float64
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTotalHours].Data, &totalHours))
	require.InDelta(t, 42.5, totalHours, 0.001)

	var months []MonthHours
	require.NoError(t, json.Unmarshal(bySlide[model.SlideHoursByMonth].Data, &months))
	require.Len(t, months, 12)
	require.Equal(t, model.MonthKey("2024-07"), months[0].Month)
	require.InDelta(t, 11.0, months[11].Hours, 0.001)

	var hours []int
	require.NoError(t, json.Unmarshal(bySlide[model.SlideHoursByHour].Data, &hours))
	require.Len(t, hours, 24)
	require.Equal(t, 100, hours[9])
	require.Equal(t, 300, hours[22])

	var longest longestPayload
	require.NoError(t, json.Unmarshal(bySlide[model.SlideLongestConversation].Data, &longest))
	require.Equal(t, "c9", longest.ConversationID)
	require.Equal(t, 120, longest.MessageCount)
}

func TestExtractTopicSlides(t *testing.T) {
	analysis := &model.AnalysisResult{
		Segments: []model.TopicSegment{
			{ConversationID: "c1", Month: "2025-05", Label: "docker networking", StartUnix: 1746000000,
				Metrics: model.TopicMetrics{FollowupCount: 9}},
			{ConversationID: "c2", Month: "2025-06", Label: "go generics", StartUnix: 1749000000,
				Metrics: model.TopicMetrics{FollowupCount: 4}},
			{ConversationID: "c3", Month: "2025-06", Label: "sourdough", StartUnix: 1749100000,
				Metrics: model.TopicMetrics{FollowupCount: 1}},
		},
		Hardest: &model.QuestionExtreme{MessageID: "m1", Score: 0.9, Text: "hardest question"},
		Easiest: &model.QuestionExtreme{MessageID: "m2", Score: 0.1, Text: "easiest question"},
	}
	records := Extract(testCompression(), nil, analysis)
	bySlide := slideMap(t, records)

	var hardest string
	require.NoError(t, json.Unmarshal(bySlide[model.SlideHardestQuestion].Data, &hardest))
	require.Equal(t, "hardest question", hardest)
	require.False(t, bySlide[model.SlideHardestQuestion].Placeholder)

	var top []string
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTopTopics].Data, &top))
	require.Equal(t, []string{"docker networking", "go generics", "sourdough"}, top)

	var byMonth []MonthTopic
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTopicsByMonth].Data, &byMonth))
	require.Len(t, byMonth, 12)
	require.Equal(t, "docker networking", byMonth[10].Topic)
	require.Equal(t, "go generics", byMonth[11].Topic)
	require.Empty(t, byMonth[0].Topic)

	var byHour []string
	require.NoError(t, json.Unmarshal(bySlide[model.SlideTopicsByHour].Data, &byHour))
	require.Len(t, byHour, 24)
}

func TestExtractDeterministic(t *testing.T) {
	a := Extract(testCompression(), nil, nil)
	b := Extract(testCompression(), nil, nil)
	require.Equal(t, a, b)
}
