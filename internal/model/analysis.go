package model

// TopicMetrics summarizes the interaction shape of one topic segment.
type TopicMetrics struct {
	RepeatCount     int     `json:"repeat_count"`
	FollowupCount   int     `json:"followup_count"`
	MeanQuestionLen float64 `json:"mean_question_len"`
	MeanAnswerLen   float64 `json:"mean_answer_len"`
	DurationSeconds float64 `json:"duration_seconds"`
	Frustration     bool    `json:"frustration"`
	Resolution      bool    `json:"resolution"`
}

// TopicSegment is a contiguous run of messages in one conversation that
// stayed above the similarity threshold against the running centroid.
// Boundaries never cross conversations.
type TopicSegment struct {
	ConversationID string       `json:"conversation_id"`
	Month          MonthKey     `json:"month"`
	SegmentIndex   int          `json:"segment_index"`
	Label          string       `json:"label"`
	MessageIDs     []string     `json:"message_ids"`
	StartUnix      float64      `json:"start_unix"`
	Metrics        TopicMetrics `json:"metrics"`
}

// QuestionScore is the difficulty heuristic for one user-authored
// message, derived from its embedding neighborhood.
type QuestionScore struct {
	MessageID string  `json:"message_id"`
	Score     float64 `json:"score"`
	Timestamp float64 `json:"timestamp"`
}

// QuestionExtreme carries the literal question text along with its score
// so consumers can render it without another artifact lookup.
type QuestionExtreme struct {
	MessageID string  `json:"message_id"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
}

// AnalysisResult is the Segmenter & Difficulty Scorer output.
type AnalysisResult struct {
	Threshold float64          `json:"threshold"`
	Neighbors int              `json:"neighbors"`
	Segments  []TopicSegment   `json:"segments"`
	Scores    []QuestionScore  `json:"scores"`
	Hardest   *QuestionExtreme `json:"hardest,omitempty"`
	Easiest   *QuestionExtreme `json:"easiest,omitempty"`
}
