package pipeline

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
	"unicode"

	"github.com/saintfish/chardet"
)

const (
	// DefaultEncoding is used when detection is inconclusive.
	DefaultEncoding = "utf-8"

	// MaxHeaderScan bounds how many leading lines the header detector reads.
	MaxHeaderScan = 30

	// minEncodingConfidence is the chardet confidence below which a guess is discarded.
	minEncodingConfidence = 10
)

// DetectEncoding guesses the character encoding of a file prefix from its
// byte distribution. It reports false when the guess is inconclusive, in
// which case callers fall back to DefaultEncoding.
func DetectEncoding(sample []byte) (string, bool) {
	if len(sample) == 0 {
		return "", false
	}

	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil || res.Charset == "" {
		return "", false
	}
	if res.Confidence < minEncodingConfidence {
		return "", false
	}

	return NormalizeEncoding(res.Charset), true
}

// NormalizeEncoding maps detector labels onto names the decoders accept.
// The legacy GB2312 family is widened to GB18030, which decodes every GBK
// and GB2312 byte sequence.
func NormalizeEncoding(label string) string {
	l := strings.ToUpper(strings.TrimSpace(label))
	switch l {
	case "GB2312", "GB-2312", "GB_2312-80", "GBK", "CP936", "GB-18030", "GB18030":
		return "GB18030"
	case "UTF8", "UTF-8":
		return "UTF-8"
	case "":
		return ""
	}
	return l
}

// HeaderGuess is the outcome of header-row detection.
type HeaderGuess struct {
	// Skip is the number of rows preceding the header row.
	Skip int

	// Confident is false when no header candidate was found or the next
	// non-blank row is wider than the chosen header or nearly empty.
	Confident bool
}

// DetectHeaderSkip scans at most maxLines lines of text and returns the index
// of the first line that contains a field separator and is not made only of
// digits, punctuation and spaces. When no line qualifies it returns Skip 0.
func DetectHeaderSkip(r io.Reader, maxLines int) HeaderGuess {
	if maxLines <= 0 {
		maxLines = MaxHeaderScan
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for len(lines) < maxLines+1 && sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}

	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = splitLine(line)
	}

	return detectHeader(rows, maxLines)
}

// DetectHeaderSkipRows applies the DetectHeaderSkip heuristic to rows that
// are already split into cells, as read from a spreadsheet.
func DetectHeaderSkipRows(rows [][]string, maxRows int) HeaderGuess {
	if maxRows <= 0 {
		maxRows = MaxHeaderScan
	}
	return detectHeader(rows, maxRows)
}

func detectHeader(rows [][]string, limit int) HeaderGuess {
	for i := 0; i < len(rows) && i < limit; i++ {
		if !isHeaderCandidate(rows[i]) {
			continue
		}

		for _, next := range rows[i+1:] {
			if nonEmptyCount(next) == 0 {
				continue
			}
			return HeaderGuess{Skip: i, Confident: len(next) <= len(rows[i]) && nonEmptyCount(next) >= 2}
		}
		return HeaderGuess{Skip: i}
	}
	return HeaderGuess{}
}

// splitLine splits a single text line on the first separator it contains.
// A line without a separator yields a single cell.
func splitLine(line string) []string {
	sep := rune(0)
	switch {
	case strings.ContainsRune(line, ','):
		sep = ','
	case strings.ContainsRune(line, '\t'):
		sep = '\t'
	default:
		return []string{line}
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	rec, err := r.Read()
	if err != nil {
		return strings.Split(line, string(sep))
	}
	return rec
}

func isHeaderCandidate(cells []string) bool {
	if nonEmptyCount(cells) < 2 {
		return false
	}
	for _, c := range cells {
		for _, ch := range c {
			if unicode.IsLetter(ch) {
				return true
			}
		}
	}
	return false
}

func nonEmptyCount(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
