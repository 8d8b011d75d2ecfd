package analyze

import (
	"context"
	"sort"

	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	DefaultThreshold = 0.65
	DefaultNeighbors = 5
	DefaultWindow    = 200
)

type Options struct {
	// Threshold is the cosine similarity below which a user message
	// opens a new topic segment.
	Threshold float64
	// Workers bounds the segmentation pool.
	Workers int
	// Neighbors is k for the difficulty neighborhood.
	Neighbors int
	// Window bounds the candidate set per question.
	Window int
	// Score folds neighbor similarities into a difficulty value.
	Score   ScoreFunc
	Labeler Labeler
}

// Analyzer is the Segmenter & Difficulty Scorer stage.
type Analyzer struct {
	opts Options
}

func New(opts Options) *Analyzer {
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Neighbors <= 0 {
		opts.Neighbors = DefaultNeighbors
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Score == nil {
		opts.Score = IsolationScore
	}
	if opts.Labeler == nil {
		opts.Labeler = &keywordLabeler{maxWords: 3}
	}
	return &Analyzer{opts: opts}
}

// Analyze segments every conversation by topic and scores every user
// question from its embedding neighborhood. The embedding matrix is
// shared read-only across the worker pool and released with the stage.
func (a *Analyzer) Analyze(ctx context.Context, compression *model.CompressionResult, embeddings *model.EmbeddingResult) (*model.AnalysisResult, error) {
	if embeddings == nil || len(embeddings.Embeddings) == 0 {
		return nil, errs.ErrCoverageMismatch
	}
	matrix := NewMatrix(embeddings)
	convs, byID := groupConversations(compression)

	segments := runSegmentPool(ctx, a.opts.Workers, convs, func(conv conversationView) []model.TopicSegment {
		return segmentConversation(ctx, conv, matrix, a.opts.Threshold, a.opts.Labeler)
	})
	// A canceled or expired budget stops the feeder early, so whatever
	// the pool handed back may be missing conversations. Surface the
	// context error instead of a truncated result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Pool completion order is arbitrary; normalize it away.
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].ConversationID != segments[j].ConversationID {
			return segments[i].ConversationID < segments[j].ConversationID
		}
		return segments[i].SegmentIndex < segments[j].SegmentIndex
	})

	questions := collectQuestions(convs, matrix)
	scores := scoreQuestions(questions, a.opts.Neighbors, a.opts.Window, a.opts.Score)
	hardest, easiest := extremes(scores)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &model.AnalysisResult{
		Threshold: a.opts.Threshold,
		Neighbors: a.opts.Neighbors,
		Segments:  segments,
		Scores:    scores,
	}
	if hardest != nil {
		result.Hardest = extremeWithText(hardest, byID)
	}
	if easiest != nil {
		result.Easiest = extremeWithText(easiest, byID)
	}

	logutil.GetLogger(ctx).Info("analysis complete",
		zap.Int("conversations", len(convs)),
		zap.Int("segments", len(segments)),
		zap.Int("scored_questions", len(scores)),
	)
	return result, nil
}

// groupConversations reassembles per-conversation message order from the
// monthly buckets and indexes messages by id for extreme lookups.
func groupConversations(compression *model.CompressionResult) ([]conversationView, map[string]*model.CompressedMessage) {
	grouped := map[string][]*model.CompressedMessage{}
	byID := map[string]*model.CompressedMessage{}
	for bi := range compression.Buckets {
		for mi := range compression.Buckets[bi].Messages {
			msg := &compression.Buckets[bi].Messages[mi]
			grouped[msg.ConversationID] = append(grouped[msg.ConversationID], msg)
			byID[msg.ID] = msg
		}
	}
	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	convs := make([]conversationView, 0, len(ids))
	for _, id := range ids {
		msgs := grouped[id]
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
		convs = append(convs, conversationView{id: id, msgs: msgs})
	}
	return convs, byID
}

// collectQuestions gathers every user message with a usable embedding,
// in (timestamp, id) order so the candidate window is well-defined
// regardless of how conversations were scheduled.
func collectQuestions(convs []conversationView, matrix *Matrix) []scoredQuestion {
	var questions []scoredQuestion
	for _, conv := range convs {
		for _, msg := range conv.msgs {
			if msg.Role != model.RoleUser {
				continue
			}
			row, ok := matrix.Row(msg.ID)
			if !ok {
				continue
			}
			questions = append(questions, scoredQuestion{id: msg.ID, timestamp: msg.Timestamp, row: row})
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].timestamp != questions[j].timestamp {
			return questions[i].timestamp < questions[j].timestamp
		}
		return questions[i].id < questions[j].id
	})
	return questions
}

func extremeWithText(score *model.QuestionScore, byID map[string]*model.CompressedMessage) *model.QuestionExtreme {
	extreme := &model.QuestionExtreme{MessageID: score.MessageID, Score: score.Score}
	if msg, ok := byID[score.MessageID]; ok {
		extreme.Text = msg.Content
	}
	return extreme
}
