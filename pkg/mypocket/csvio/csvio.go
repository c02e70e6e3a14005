// Package csvio reads and writes the link interchange CSV. Two dialects are
// read: the pipe-tagged export format and the bracket-tagged format whose
// header starts with "url,title". Output is always the pipe dialect.
package csvio

import (
	"strconv"
	"strings"
	"time"
)

// Header is the first line of every generated file
const Header = "title,url,time_added,tags,status"

// StatusUnread is the status given to rows of dialects that have none
const StatusUnread = "unread"

// Format is a CSV dialect
type Format int

const (
	// FormatPipe: title,url,time_added,tags,status with tags as a|b
	FormatPipe Format = iota
	// FormatBracket: url,title,?,?,time_added,tags with tags as ["a","b"]
	FormatBracket
)

const (
	pipeColumns    = 5
	bracketColumns = 6
)

// Row is one link crossing the import/export boundary
type Row struct {
	Title     string
	URL       string
	TimeAdded int64 // unix seconds
	Tags      []string
	Status    string
}

func (f Format) String() string {
	if f == FormatBracket {
		return "bracket"
	}
	return "pipe"
}

func lines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// DetectFormat picks the dialect from the first non-blank line
func DetectFormat(content string) Format {
	all := lines(content)
	if len(all) == 0 {
		return FormatPipe
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(all[0])), "url,title") {
		return FormatBracket
	}
	return FormatPipe
}

// ParseLine splits one CSV line. Double quotes toggle quoting, a doubled
// quote inside a quoted field is a literal quote and commas inside quotes
// do not split.
func ParseLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}

	return append(fields, field.String())
}

// Parser reads CSV content. Now supplies the timestamp for rows without a
// usable time_added.
type Parser struct {
	Now func() time.Time
}

// Parse reads content with the wall clock as timestamp fallback
func Parse(content string) []Row {
	return Parser{}.Parse(content)
}

// Parse reads content in either dialect. Rows that are too short or lack a
// URL are dropped.
func (p Parser) Parse(content string) []Row {
	all := lines(content)
	if len(all) == 0 {
		return nil
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}

	format := DetectFormat(content)
	rows := make([]Row, 0, len(all)-1)
	for _, line := range all[1:] {
		fields := ParseLine(line)

		var (
			row Row
			ok  bool
		)
		if format == FormatBracket {
			row, ok = parseBracketRow(fields, now)
		} else {
			row, ok = parsePipeRow(fields, now)
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func parsePipeRow(fields []string, now func() time.Time) (Row, bool) {
	if len(fields) < pipeColumns {
		return Row{}, false
	}

	url := strings.TrimSpace(fields[1])
	if url == "" {
		return Row{}, false
	}

	title := strings.TrimSpace(fields[0])
	if title == "" {
		title = url
	}

	return Row{
		Title:     title,
		URL:       url,
		TimeAdded: parseTimestamp(fields[2], now),
		Tags:      splitTags(strings.TrimSpace(fields[3]), "|", nil),
		Status:    strings.TrimSpace(fields[4]),
	}, true
}

func parseBracketRow(fields []string, now func() time.Time) (Row, bool) {
	if len(fields) < bracketColumns {
		return Row{}, false
	}

	url := strings.TrimSpace(fields[0])
	if url == "" {
		return Row{}, false
	}

	title := strings.TrimSpace(fields[1])
	if title == "" {
		title = url
	}

	raw := strings.TrimSpace(fields[5])
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	tags := splitTags(strings.TrimSpace(raw), ",", unquote)

	return Row{
		Title:     title,
		URL:       url,
		TimeAdded: parseTimestamp(fields[4], now),
		Tags:      tags,
		Status:    StatusUnread,
	}, true
}

func unquote(s string) string {
	s = strings.TrimPrefix(strings.TrimPrefix(s, `"`), "'")
	return strings.TrimSuffix(strings.TrimSuffix(s, `"`), "'")
}

func splitTags(raw, sep string, clean func(string) string) []string {
	tags := []string{}
	if raw == "" {
		return tags
	}
	for _, tag := range strings.Split(raw, sep) {
		tag = strings.TrimSpace(tag)
		if clean != nil {
			tag = clean(tag)
		}
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// parseTimestamp reads the leading integer of s, so "1700000000.5" is
// 1700000000. Anything without one falls back to now.
func parseTimestamp(s string, now func() time.Time) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if v, err := strconv.ParseInt(s[:end], 10, 64); err == nil {
		return v
	}
	return now().Unix()
}

// Generate writes rows in the pipe dialect, lines joined by "\n" with no
// trailing newline.
func Generate(rows []Row) string {
	var b strings.Builder
	b.WriteString(Header)
	for _, row := range rows {
		b.WriteByte('\n')
		b.WriteString(escape(row.Title))
		b.WriteByte(',')
		b.WriteString(escape(row.URL))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(row.TimeAdded, 10))
		b.WriteByte(',')
		b.WriteString(escape(strings.Join(row.Tags, "|")))
		b.WriteByte(',')
		b.WriteString(escape(row.Status))
	}
	return b.String()
}

func escape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}
