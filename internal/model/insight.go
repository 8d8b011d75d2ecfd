package model

import "encoding/json"

// Slide index range served to the presentation layer. Index -1 is the
// intro sentinel and SlideOutro the outro; every index in between gets
// exactly one record per run.
const (
	SlideIntro               = -1
	SlideTotalHours          = 0
	SlideHoursByMonth        = 1
	SlideHoursByHour         = 2
	SlideLongestConversation = 3
	SlideEasiestQuestion     = 4
	SlideHardestQuestion     = 5
	SlideTopTopics           = 6
	SlideTopicsByMonth       = 7
	SlideTopicsByHour        = 8
	SlideOutro               = 9
)

// Insight type discriminators.
const (
	InsightIntro               = "intro"
	InsightTotalHours          = "total_hours"
	InsightHoursByMonth        = "hours_by_month"
	InsightHoursByHour         = "hours_by_hour"
	InsightLongestConversation = "longest_conversation"
	InsightEasiestQuestion     = "easiest_question"
	InsightHardestQuestion     = "hardest_question"
	InsightTopTopics           = "top_topics"
	InsightTopicsByMonth       = "topics_by_month"
	InsightTopicsByHour        = "topics_by_hour"
	InsightOutro               = "outro"
)

// InsightRecord is the only artifact crossing the core/presentation
// boundary: one self-describing payload per slide index. Placeholder is
// set when the backing optional stage did not run.
type InsightRecord struct {
	Slide       int             `json:"slide"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
}
