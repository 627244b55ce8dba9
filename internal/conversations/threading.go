package conversations

import (
	"strings"

	"mailtriage/internal/models"
)

// ReplyHeaders returns In-Reply-To and References for a message answering
// parent. References carries the parent's chain followed by the parent itself.
func ReplyHeaders(parent *models.Email) (string, []string) {
	if parent == nil || parent.Reference == nil || *parent.Reference == "" {
		return "", nil
	}

	var refs []string
	if parent.References != nil {
		refs = strings.Fields(*parent.References)
	}
	if len(refs) == 0 && parent.InReplyTo != nil && *parent.InReplyTo != "" {
		refs = append(refs, *parent.InReplyTo)
	}
	refs = append(refs, *parent.Reference)

	return *parent.Reference, dedupe(refs)
}

// JoinReferences stores a References list in its column form
func JoinReferences(refs []string) *string {
	if len(refs) == 0 {
		return nil
	}
	joined := strings.Join(refs, " ")
	return &joined
}

// ReplySubject prefixes a subject with "Re: " once
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
