package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/xxxsen/chatwrapped/internal/model"
	"github.com/xxxsen/chatwrapped/internal/pkg/errs"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// rawConversation accepts both the ChatGPT export shape (a mapping of
// node id -> node) and a plain ordered message list.
type rawConversation struct {
	ID         string             `json:"id"`
	ConvID     string             `json:"conversation_id"`
	Title      string             `json:"title"`
	CreateTime jsonNumber         `json:"create_time"`
	UpdateTime jsonNumber         `json:"update_time"`
	Mapping    map[string]rawNode `json:"mapping"`
	Messages   []rawMessage       `json:"messages"`
}

type rawNode struct {
	Message *rawNodeMessage `json:"message"`
}

type rawNodeMessage struct {
	ID         string     `json:"id"`
	Author     rawAuthor  `json:"author"`
	CreateTime jsonNumber `json:"create_time"`
	Content    rawContent `json:"content"`
}

type rawAuthor struct {
	Role string `json:"role"`
}

type rawContent struct {
	Parts []any  `json:"parts"`
	Text  string `json:"text"`
}

type rawMessage struct {
	ID         string     `json:"id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Text       string     `json:"text"`
	Timestamp  jsonNumber `json:"timestamp"`
	CreateTime jsonNumber `json:"create_time"`
}

// jsonNumber tolerates numeric timestamps encoded as either numbers or
// strings, which both occur in the wild.
type jsonNumber float64

func (n *jsonNumber) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = jsonNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = jsonNumber(v)
	return nil
}

// ParseFile opens and parses a raw export file.
func ParseFile(ctx context.Context, path string) (*model.Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f)
}

// Parse reads a raw conversation export. The top-level value is either a
// JSON array of conversations or an object with an array-valued field
// (e.g. {"conversations": [...]}). The export is typically one huge
// line, so decoding streams conversation by conversation instead of
// buffering the whole document.
func Parse(ctx context.Context, r io.Reader) (*model.Archive, error) {
	dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<20))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedInput, err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("%w: expected array or object, got %T", errs.ErrMalformedInput, tok)
	}

	if delim == '{' {
		if err := seekConversationArray(dec); err != nil {
			return nil, err
		}
	} else if delim != '[' {
		return nil, fmt.Errorf("%w: unexpected delimiter %q", errs.ErrMalformedInput, delim)
	}

	archive := &model.Archive{}
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var raw rawConversation
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: decode conversation: %v", errs.ErrMalformedInput, err)
		}
		conv, skippedMsgs, ok := convertConversation(raw)
		archive.SkippedMsgs += skippedMsgs
		if !ok {
			archive.SkippedConvs++
			continue
		}
		archive.Conversations = append(archive.Conversations, conv)
	}

	logutil.GetLogger(ctx).Info("export parsed",
		zap.Int("conversations", len(archive.Conversations)),
		zap.Int("skipped_conversations", archive.SkippedConvs),
		zap.Int("skipped_messages", archive.SkippedMsgs),
	)
	return archive, nil
}

// seekConversationArray advances the decoder inside a top-level object to
// the first array-valued field and leaves it positioned inside that array.
func seekConversationArray(dec *json.Decoder) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: no conversation array found", errs.ErrMalformedInput)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return fmt.Errorf("%w: no conversation array found", errs.ErrMalformedInput)
		}
		// tok is a field name here; look at the value that follows.
		next, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrMalformedInput, err)
		}
		if d, ok := next.(json.Delim); ok {
			if d == '[' {
				return nil
			}
			if err := skipValue(dec, d); err != nil {
				return err
			}
		}
	}
}

// skipValue consumes the remainder of a compound value whose opening
// delimiter has already been read.
func skipValue(dec *json.Decoder, open json.Delim) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrMalformedInput, err)
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

func convertConversation(raw rawConversation) (model.Conversation, int, bool) {
	id := raw.ID
	if id == "" {
		id = raw.ConvID
	}
	if id == "" {
		return model.Conversation{}, 0, false
	}

	var msgs []model.Message
	skipped := 0
	switch {
	case len(raw.Mapping) > 0:
		msgs, skipped = messagesFromMapping(id, raw.Mapping)
	case len(raw.Messages) > 0:
		msgs, skipped = messagesFromList(id, raw.Messages)
	}
	if len(msgs) == 0 {
		return model.Conversation{}, skipped, false
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return model.Conversation{
		ID:         id,
		Title:      raw.Title,
		CreateTime: float64(raw.CreateTime),
		UpdateTime: float64(raw.UpdateTime),
		Messages:   msgs,
	}, skipped, true
}

// messagesFromMapping flattens a ChatGPT node graph. The message id is
// convID_nodeID, which stays stable across all downstream stages.
func messagesFromMapping(convID string, mapping map[string]rawNode) ([]model.Message, int) {
	msgs := make([]model.Message, 0, len(mapping))
	skipped := 0
	nodeIDs := make([]string, 0, len(mapping))
	for nodeID := range mapping {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Strings(nodeIDs)
	for _, nodeID := range nodeIDs {
		node := mapping[nodeID]
		if node.Message == nil {
			continue
		}
		m := node.Message
		if m.CreateTime == 0 {
			skipped++
			continue
		}
		msgs = append(msgs, model.Message{
			ID:             convID + "_" + nodeID,
			ConversationID: convID,
			Role:           m.Author.Role,
			Content:        contentText(m.Content),
			Timestamp:      float64(m.CreateTime),
		})
	}
	return msgs, skipped
}

func messagesFromList(convID string, list []rawMessage) ([]model.Message, int) {
	msgs := make([]model.Message, 0, len(list))
	skipped := 0
	for i, m := range list {
		ts := float64(m.Timestamp)
		if ts == 0 {
			ts = float64(m.CreateTime)
		}
		if ts == 0 {
			skipped++
			continue
		}
		id := m.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", convID, i)
		} else {
			id = convID + "_" + id
		}
		text := m.Content
		if text == "" {
			text = m.Text
		}
		msgs = append(msgs, model.Message{
			ID:             id,
			ConversationID: convID,
			Role:           m.Role,
			Content:        text,
			Timestamp:      ts,
		})
	}
	return msgs, skipped
}

func contentText(c rawContent) string {
	if len(c.Parts) == 0 {
		return c.Text
	}
	out := ""
	for _, p := range c.Parts {
		s, ok := p.(string)
		if !ok || s == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += s
	}
	return out
}
