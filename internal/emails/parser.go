package emails

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mailtriage/internal/models"

	"golang.org/x/text/encoding/htmlindex"
)

// maxNestingDepth bounds recursion into nested multipart bodies
const maxNestingDepth = 10

// ParseEMLFile parses a single EML file
func ParseEMLFile(filename string) (*models.RawMessage, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseMessage(file)
}

// ParseDirectory recursively parses all EML files in a directory. Files that
// fail to parse are reported in the returned map and skipped.
func ParseDirectory(dirPath string) ([]*models.RawMessage, map[string]error, error) {
	var messages []*models.RawMessage
	failures := make(map[string]error)

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".eml") {
			return nil
		}

		msg, err := ParseEMLFile(path)
		if err != nil {
			failures[path] = err
			return nil
		}
		messages = append(messages, msg)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return messages, failures, nil
}

// ParseMessage parses an RFC 5322 message into headers, bodies and attachments
func ParseMessage(r io.Reader) (*models.RawMessage, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read email message: %w", err)
	}

	header := msg.Header
	raw := &models.RawMessage{
		MessageID:  CleanMessageID(header.Get("Message-ID")),
		InReplyTo:  firstMessageID(header.Get("In-Reply-To")),
		References: ParseMessageIDs(header.Get("References")),
		Subject:    DecodeHeader(header.Get("Subject")),
		To:         DecodeHeader(header.Get("To")),
		Date:       time.Now().UTC(),
	}

	from := header.Get("From")
	if from == "" {
		return nil, fmt.Errorf("message has no From header")
	}
	raw.From, raw.FromName = ParseAddress(from)

	if dateStr := header.Get("Date"); dateStr != "" {
		if date, err := mail.ParseDate(dateStr); err == nil {
			raw.Date = date.UTC()
		}
	}

	part := &mimePart{
		contentType:      header.Get("Content-Type"),
		transferEncoding: header.Get("Content-Transfer-Encoding"),
		disposition:      header.Get("Content-Disposition"),
		body:             msg.Body,
	}
	if err := collectPart(raw, part, 0); err != nil {
		return nil, fmt.Errorf("failed to extract body: %w", err)
	}

	if raw.TextBody == "" && raw.HTMLBody != "" {
		raw.TextBody = cleanHTML(raw.HTMLBody)
	}
	raw.TextBody = strings.TrimSpace(raw.TextBody)

	return raw, nil
}

type mimePart struct {
	contentType      string
	transferEncoding string
	disposition      string
	body             io.Reader
}

// collectPart walks a MIME tree, keeping the first text/plain and text/html
// bodies and every attachment.
func collectPart(raw *models.RawMessage, part *mimePart, depth int) error {
	if depth > maxNestingDepth {
		return fmt.Errorf("multipart nesting deeper than %d", maxNestingDepth)
	}

	mediaType, params, err := mime.ParseMediaType(part.contentType)
	if err != nil || mediaType == "" {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(part.body, params["boundary"])
		for {
			p, err := mr.NextRawPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			child := &mimePart{
				contentType:      p.Header.Get("Content-Type"),
				transferEncoding: p.Header.Get("Content-Transfer-Encoding"),
				disposition:      p.Header.Get("Content-Disposition"),
				body:             p,
			}
			if err := collectPart(raw, child, depth+1); err != nil {
				return err
			}
		}
	}

	content, err := io.ReadAll(decodeTransfer(part.body, part.transferEncoding))
	if err != nil {
		return err
	}

	filename := attachmentFilename(part.disposition, params)
	isAttachment := filename != "" || strings.HasPrefix(strings.ToLower(part.disposition), "attachment")
	if !isAttachment && (mediaType == "text/plain" || mediaType == "text/html") {
		text := decodeCharset(content, params["charset"])
		if mediaType == "text/plain" && raw.TextBody == "" {
			raw.TextBody = text
		} else if mediaType == "text/html" && raw.HTMLBody == "" {
			raw.HTMLBody = text
		}
		return nil
	}

	if filename == "" {
		filename = "attachment"
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			filename += exts[0]
		}
	}
	raw.Attachments = append(raw.Attachments, models.RawAttachment{
		Filename: filename,
		MimeType: mediaType,
		Content:  content,
	})
	return nil
}

func decodeTransfer(body io.Reader, transferEncoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &whitespaceStripper{r: body})
	}
	return body
}

// whitespaceStripper drops CR/LF and spaces so line-wrapped base64 decodes
type whitespaceStripper struct {
	r io.Reader
}

func (w *whitespaceStripper) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	j := 0
	for i := 0; i < n; i++ {
		switch p[i] {
		case '\r', '\n', ' ', '\t':
			continue
		}
		p[j] = p[i]
		j++
	}
	return j, err
}

func decodeCharset(content []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(content)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(content)
	}
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(content)))
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func attachmentFilename(disposition string, ctParams map[string]string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return DecodeHeader(params["filename"])
		}
	}
	return DecodeHeader(ctParams["name"])
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// DecodeHeader decodes MIME encoded-word headers
func DecodeHeader(header string) string {
	decoded, err := wordDecoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// ParseAddress returns the lowercased address and display name of a From header
func ParseAddress(header string) (address, name string) {
	addr, err := (&mail.AddressParser{WordDecoder: wordDecoder}).Parse(header)
	if err != nil {
		trimmed := strings.Trim(strings.TrimSpace(header), "<>")
		return strings.ToLower(trimmed), ""
	}
	return strings.ToLower(addr.Address), addr.Name
}

// ParseMessageIDs extracts every Message-ID of a References-style header
func ParseMessageIDs(header string) []string {
	var ids []string
	for _, field := range strings.Fields(header) {
		if id := CleanMessageID(field); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func firstMessageID(header string) string {
	if ids := ParseMessageIDs(header); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// CleanMessageID removes < and > from Message-IDs
func CleanMessageID(msgID string) string {
	msgID = strings.TrimSpace(msgID)
	msgID = strings.TrimPrefix(msgID, "<")
	msgID = strings.TrimSuffix(msgID, ">")
	return msgID
}

// ThreadIDs returns the Message-IDs a message answers: In-Reply-To first,
// then References newest to oldest, without duplicates.
func ThreadIDs(raw *models.RawMessage) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	add(raw.InReplyTo)
	for i := len(raw.References) - 1; i >= 0; i-- {
		add(raw.References[i])
	}
	return ids
}

// cleanHTML removes HTML tags (basic implementation)
func cleanHTML(html string) string {
	html = removeTagsWithContent(html, "script")
	html = removeTagsWithContent(html, "style")

	html = strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n\n", "</div>", "\n",
	).Replace(html)

	var result strings.Builder
	inTag := false
	for _, char := range html {
		if char == '<' {
			inTag = true
			continue
		}
		if char == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(char)
		}
	}

	text := strings.NewReplacer(
		"&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&quot;", "\"", "&#39;", "'", "&amp;", "&",
	).Replace(result.String())
	text = strings.TrimSpace(text)

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}

	return text
}

// removeTagsWithContent removes HTML tags and their content
func removeTagsWithContent(html, tag string) string {
	openTag := "<" + tag
	closeTag := "</" + tag + ">"

	for {
		lower := strings.ToLower(html)
		start := strings.Index(lower, openTag)
		if start == -1 {
			break
		}

		end := strings.Index(lower[start:], closeTag)
		if end == -1 {
			break
		}
		end += start + len(closeTag)

		html = html[:start] + html[end:]
	}

	return html
}
