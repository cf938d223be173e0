package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"
)

// Headers kept in front of the message body.
var mailHeaders = []string{"From", "To", "Cc", "Subject"}

// Email decodes a MIME message: the selected headers, then the text body.
// When the message has no text part, the HTML part is reduced to text.
// Transfer encodings (quoted-printable, base64) and charsets are resolved by enmime.
func Email(raw []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("eml: %w", err)
	}

	var b strings.Builder
	for _, name := range mailHeaders {
		if v := strings.TrimSpace(env.GetHeader(name)); v != "" {
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body, err = HTMLText([]byte(env.HTML))
		if err != nil {
			return "", fmt.Errorf("eml html body: %w", err)
		}
	}
	b.WriteString(body)
	return b.String(), nil
}

// Mailbox decodes every message of an mbox file as Email, in file order.
// A message that fails to decode fails the whole mailbox.
func Mailbox(raw []byte) (string, error) {
	r := mbox.NewReader(bytes.NewReader(raw))

	var parts []string
	for n := 1; ; n++ {
		msg, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("mbox message %d: %w", n, err)
		}
		content, err := io.ReadAll(msg)
		if err != nil {
			return "", fmt.Errorf("mbox message %d: %w", n, err)
		}
		text, err := Email(content)
		if err != nil {
			return "", fmt.Errorf("mbox message %d: %w", n, err)
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n"), nil
}
