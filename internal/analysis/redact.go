/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)
	urlRe   = regexp.MustCompile(`https?://[^\s]+`)
	dateRe  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	tokenRe = regexp.MustCompile(`(?i)\b(?:token|secret|password|apikey|api_key|bearer)[:=\s]+[A-Za-z0-9\-\._~+/]{8,}\b`)
)

func scrub(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = urlRe.ReplaceAllString(s, "<url>")
	s = emailRe.ReplaceAllString(s, "<email>")
	// ISO dates look like phone numbers to phoneRe; park them first.
	var dates []string
	s = dateRe.ReplaceAllStringFunc(s, func(d string) string {
		dates = append(dates, d)
		return datePlaceholder(len(dates) - 1)
	})
	s = phoneRe.ReplaceAllString(s, "<phone>")
	s = tokenRe.ReplaceAllString(s, "<secret>")
	for i, d := range dates {
		s = strings.Replace(s, datePlaceholder(i), d, 1)
	}
	return s
}

func datePlaceholder(i int) string { return fmt.Sprintf("\x00date%d\x00", i) }

// RedactPII scrubs contact details and secrets from texts before they leave
// for the LLM, and replaces the given people's names with stable aliases
// (user01, user02, ...) in order of first appearance in names.
func RedactPII(texts []string, names []string) []string {
	alias := map[string]string{}
	var order []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := alias[n]; !ok {
			alias[n] = fmt.Sprintf("user%02d", len(alias)+1)
			order = append(order, n)
		}
	}
	nameRes := make([]*regexp.Regexp, 0, len(order))
	for _, n := range order {
		nameRes = append(nameRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(n)+`\b`))
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		t = scrub(t)
		for idx, re := range nameRes {
			t = re.ReplaceAllString(t, alias[order[idx]])
		}
		out[i] = t
	}
	return out
}
