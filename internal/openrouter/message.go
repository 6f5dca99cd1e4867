package openrouter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ferrule/courier/internal/attachments"
	"github.com/ferrule/courier/internal/conversation"
)

// ToMessage converts a conversation turn to its wire message. The
// second return value reports whether the turn is representable at
// all; unrepresentable turns (an empty system or user turn) are
// skipped by the caller with a warning.
func ToMessage(turn conversation.Turn, logger *slog.Logger) (Message, bool, error) {
	switch turn.Role {
	case conversation.RoleSystem:
		if turn.Text == "" {
			return Message{}, false, nil
		}
		return Message{Role: "system", Content: turn.Text}, true, nil

	case conversation.RoleUser:
		if len(turn.Attachments) == 0 {
			if turn.Text == "" {
				return Message{}, false, nil
			}
			return Message{Role: "user", Content: turn.Text}, true, nil
		}
		parts := make([]ContentPart, 0, len(turn.Attachments)+1)
		if turn.Text != "" {
			parts = append(parts, ContentPart{Type: "text", Text: turn.Text})
		}
		for _, att := range turn.Attachments {
			part, ok := attachmentPart(att, logger)
			if !ok {
				continue
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			return Message{}, false, nil
		}
		return Message{Role: "user", Content: parts}, true, nil

	case conversation.RoleAssistant:
		msg := Message{Role: "assistant", Content: turn.Text}
		for _, call := range turn.ToolCalls {
			args, err := json.Marshal(call.Arguments)
			if err != nil {
				return Message{}, false, fmt.Errorf("encode arguments for tool call %s: %w", call.Name, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:       call.ID,
				Type:     "function",
				Function: FunctionCall{Name: call.Name, Arguments: string(args)},
			})
		}
		return msg, true, nil

	case conversation.RoleTool:
		result, err := json.Marshal(turn.Result)
		if err != nil {
			return Message{}, false, fmt.Errorf("encode result for tool call %s: %w", turn.ToolCallID, err)
		}
		return Message{Role: "tool", ToolCallID: turn.ToolCallID, Content: string(result)}, true, nil
	}
	return Message{}, false, nil
}

// attachmentPart produces the content part for one attachment: local
// bytes become a base64 data URI, remote-only attachments pass their
// URL through unembedded, and a failed resolve degrades to a text
// part describing the failure. Only image attachments go on the wire;
// anything else is dropped with a warning.
func attachmentPart(att conversation.Attachment, logger *slog.Logger) (ContentPart, bool) {
	mediaType := attachments.MediaType(att, logger)
	if !strings.HasPrefix(mediaType, "image/") {
		if logger != nil {
			logger.Warn("skipping non-image attachment", "filename", att.Filename, "media_type", mediaType)
		}
		return ContentPart{}, false
	}
	if len(att.Data) == 0 && att.Path == "" && att.URL != "" {
		return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: att.URL}}, true
	}
	data, err := attachments.Resolve(att)
	if err != nil {
		if logger != nil {
			logger.Warn("attachment unavailable", "filename", att.Filename, "error", err)
		}
		return ContentPart{Type: "text", Text: fmt.Sprintf("[attachment %s could not be read: %v]", att.Filename, err)}, true
	}
	uri := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: uri}}, true
}
