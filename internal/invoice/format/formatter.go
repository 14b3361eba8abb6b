package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

const DefaultInvoiceNumberTemplate = "INV-{YYYY}{MM}{DD}-{SEQ6}"

// FormatInvoiceNumber expands template for the given issue date and sequence.
// Supported tokens: {YYYY} {YY} {MM} {DD} {SEQ} and {SEQn} (zero padded to n).
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("invoice number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}

	issuedAt = issuedAt.UTC()
	out := strings.NewReplacer(
		"{YYYY}", issuedAt.Format("2006"),
		"{YY}", issuedAt.Format("06"),
		"{MM}", issuedAt.Format("01"),
		"{DD}", issuedAt.Format("02"),
		"{SEQ}", strconv.FormatInt(seq, 10),
	).Replace(template)

	out = seqPadRe.ReplaceAllStringFunc(out, func(token string) string {
		width, err := strconv.Atoi(seqPadRe.FindStringSubmatch(token)[1])
		if err != nil || width <= 0 {
			return token
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}
