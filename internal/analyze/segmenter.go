package analyze

import (
	"context"
	"time"

	"github.com/xxxsen/chatwrapped/internal/model"
)

// conversationView is one conversation's compressed messages in
// timestamp order, reassembled from the monthly buckets.
type conversationView struct {
	id   string
	msgs []*model.CompressedMessage
}

// segmentConversation walks one conversation in timestamp order and cuts
// a new topic segment whenever a user message's similarity to the
// running segment centroid drops below the threshold. Assistant
// messages and messages without usable embeddings never open a segment.
// Boundaries are strictly local to the conversation.
func segmentConversation(ctx context.Context, conv conversationView, matrix *Matrix, threshold float64, labeler Labeler) []model.TopicSegment {
	type building struct {
		msgs     []*model.CompressedMessage
		centroid *Centroid
	}
	var segments []building
	var current *building

	open := func(msg *model.CompressedMessage, vec []float32) {
		segments = append(segments, building{centroid: NewCentroid(matrix.Dims())})
		current = &segments[len(segments)-1]
		current.msgs = append(current.msgs, msg)
		if vec != nil {
			current.centroid.Add(vec)
		}
	}
	extend := func(msg *model.CompressedMessage, vec []float32) {
		current.msgs = append(current.msgs, msg)
		if vec != nil {
			current.centroid.Add(vec)
		}
	}

	for _, msg := range conv.msgs {
		vec, _ := matrix.Row(msg.ID)
		if current == nil {
			open(msg, vec)
			continue
		}
		if msg.Role != model.RoleUser {
			extend(msg, vec)
			continue
		}
		centroid := current.centroid.Unit()
		if centroid == nil || vec == nil {
			// No basis for comparison: assume same topic.
			extend(msg, vec)
			continue
		}
		if Cosine(vec, centroid) < threshold {
			open(msg, vec)
			continue
		}
		extend(msg, vec)
	}

	out := make([]model.TopicSegment, 0, len(segments))
	for i := range segments {
		seg := &segments[i]
		first := seg.msgs[0]
		out = append(out, model.TopicSegment{
			ConversationID: conv.id,
			Month:          monthOf(first.Timestamp),
			SegmentIndex:   i,
			Label:          labeler.Label(ctx, seg.msgs),
			MessageIDs:     messageIDs(seg.msgs),
			StartUnix:      first.Timestamp,
			Metrics:        segmentMetrics(seg.msgs),
		})
	}
	return out
}

func segmentMetrics(msgs []*model.CompressedMessage) model.TopicMetrics {
	var metrics model.TopicMetrics
	var questionLen, answerLen float64
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleUser:
			metrics.RepeatCount++
			questionLen += float64(len(msg.Content))
			if hasFrustrationSignal(msg.Content) {
				metrics.Frustration = true
			}
			if hasResolutionSignal(msg.Content) {
				metrics.Resolution = true
			}
		case model.RoleAssistant:
			metrics.FollowupCount++
			answerLen += float64(len(msg.Content))
		}
	}
	if metrics.RepeatCount > 0 {
		metrics.MeanQuestionLen = questionLen / float64(metrics.RepeatCount)
	}
	if metrics.FollowupCount > 0 {
		metrics.MeanAnswerLen = answerLen / float64(metrics.FollowupCount)
	}
	if len(msgs) >= 2 {
		metrics.DurationSeconds = msgs[len(msgs)-1].Timestamp - msgs[0].Timestamp
	}
	return metrics
}

func messageIDs(msgs []*model.CompressedMessage) []string {
	ids := make([]string, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.ID
	}
	return ids
}

func monthOf(unix float64) model.MonthKey {
	return model.MonthKey(time.Unix(int64(unix), 0).UTC().Format("2006-01"))
}
