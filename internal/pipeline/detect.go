package pipeline

import (
	"regexp"
	"strings"

	"repricer/internal"
)

type DetectResult struct {
	IsPriceList bool
	Score       float64
	Reason      string
}

var detectKeywords = []string{"price", "precio", "lista", "tarifa", "cost", "catalog", "catálogo"}

var dollarAmount = regexp.MustCompile(`\$\s*\d[\d,]*\.\d`)

// DetectPriceList scores how likely a message is to carry a price list.
// It is used to skip newsletters and order confirmations that arrive in
// the same mailbox.
func DetectPriceList(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	amounts := len(dollarAmount.FindAllStringIndex(text, -1))
	if amounts >= 2 {
		score += 0.4
	} else if amounts == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		kind, ok := internal.KindForFilename(name)
		if ok && kind != internal.KindEmail {
			score += 0.25
			break
		}
	}

	if score > 1 {
		score = 1
	}

	isPriceList := score >= 0.45
	reason := "rules_negative"
	if isPriceList {
		reason = "rules_positive"
	}

	return DetectResult{IsPriceList: isPriceList, Score: score, Reason: reason}
}
