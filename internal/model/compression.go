package model

// CompressedMessage is one archive message after normalization. Content
// is the original text; Cleaned is the lowercased, stopword-free form
// fed to embedding and labeling.
type CompressedMessage struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	Cleaned        string  `json:"cleaned"`
	Timestamp      float64 `json:"timestamp"`
}

// MonthKey is a calendar month in YYYY-MM form, always UTC.
type MonthKey string

type MonthStats struct {
	TotalHours         float64     `json:"total_hours"`
	ConversationCount  int         `json:"conversation_count"`
	MessageCount       int         `json:"message_count"`
	PeakHour           int         `json:"peak_hour"`
	PeakHourMessages   int         `json:"peak_hour_messages"`
	HourlyDistribution map[int]int `json:"hourly_distribution"`
}

// MonthlyBucket holds one calendar month of the trailing window.
// Messages are sorted by timestamp.
type MonthlyBucket struct {
	Month    MonthKey            `json:"month"`
	Stats    MonthStats          `json:"stats"`
	Messages []CompressedMessage `json:"messages"`
}

type LongestConversation struct {
	ConversationID string  `json:"conversation_id"`
	Title          string  `json:"title,omitempty"`
	DurationHours  float64 `json:"duration_hours"`
	MessageCount   int     `json:"message_count"`
}

// CostBreakdown is an explicit rough proxy derived from configured
// per-hour rates, not a billing figure.
type CostBreakdown struct {
	GPUPerHour         float64 `json:"gpu_per_hour"`
	ElectricityPerHour float64 `json:"electricity_per_hour"`
	DevelopmentPerHour float64 `json:"development_per_hour"`
	TotalPerHour       float64 `json:"total_per_hour"`
	EstimatedUSD       float64 `json:"estimated_usd"`
}

type CompressionAnalytics struct {
	TotalHours         float64             `json:"total_hours"`
	TotalMessages      int                 `json:"total_messages"`
	TotalConversations int                 `json:"total_conversations"`
	PeakMonth          MonthKey            `json:"peak_month"`
	PeakUsageHour      int                 `json:"peak_usage_hour"`
	PeakUsageMessages  int                 `json:"peak_usage_messages"`
	HourlyDistribution map[int]int         `json:"hourly_distribution"`
	Longest            LongestConversation `json:"longest_conversation"`
	Cost               *CostBreakdown      `json:"cost,omitempty"`
}

// CompressionResult is the Normalizer output: exactly twelve monthly
// buckets oldest first, plus the usage analytics derived from them.
type CompressionResult struct {
	Buckets      []MonthlyBucket      `json:"buckets"`
	Analytics    CompressionAnalytics `json:"analytics"`
	CutoffUnix   float64              `json:"cutoff_unix"`
	NewestUnix   float64              `json:"newest_unix"`
	SkippedConvs int                  `json:"skipped_conversations,omitempty"`
	SkippedMsgs  int                  `json:"skipped_messages,omitempty"`
}

// MessageCount is the total number of compressed messages across all
// buckets.
func (r *CompressionResult) MessageCount() int {
	n := 0
	for i := range r.Buckets {
		n += len(r.Buckets[i].Messages)
	}
	return n
}
