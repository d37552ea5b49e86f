package loader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/KaramelBytes/datakit-cli/internal/errs"
	"github.com/KaramelBytes/datakit-cli/internal/table"
	"github.com/saintfish/chardet"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// EncodingSampleSize is how many leading bytes feed the encoding detector.
	EncodingSampleSize = 100_000
	// PermissiveEncoding never fails to decode.
	PermissiveEncoding = "ISO-8859-1"

	defaultEncoding   = "UTF-8"
	defaultConfidence = 0.5
	sniffLines        = 20
)

// DelimiterCandidates in tie-break order.
var DelimiterCandidates = []rune{',', ';', '\t', '|'}

// robust-tier sniffer candidates
var sniffCandidates = []byte{',', '\t', ';', '|', ':'}

var errInvalidBytes = errors.Base("invalid bytes for encoding")

type delimitedFormat struct{}

func (delimitedFormat) Name() string         { return "csv" }
func (delimitedFormat) Extensions() []string { return []string{".csv", ".txt", ".tsv"} }

// DetectDelimiter counts each candidate in line; the highest count wins and
// ties go to the earlier candidate. A line with none of them yields ','.
func DetectDelimiter(line string) rune {
	best, bestN := DelimiterCandidates[0], 0
	for _, c := range DelimiterCandidates {
		if n := strings.Count(line, string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// DetectEncoding runs the statistical detector over the first
// EncodingSampleSize bytes of path. Detector failures fall back to UTF-8
// with confidence 0.5; an unreadable file is an error.
func DetectEncoding(path string) (string, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.WithStack(err)
	}
	defer f.Close()
	buf := make([]byte, EncodingSampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", 0, errors.WithStack(err)
	}
	return detectEncoding(buf[:n])
}

// detectCharset is swapped out by tests.
var detectCharset = func(sample []byte) (*chardet.Result, error) {
	return chardet.NewTextDetector().DetectBest(sample)
}

func detectEncoding(sample []byte) (string, float64, error) {
	if bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}) {
		return defaultEncoding, 1, nil
	}
	if len(bytes.TrimSpace(sample)) == 0 {
		return defaultEncoding, defaultConfidence, nil
	}
	res, err := detectCharset(sample)
	if err != nil || res == nil || res.Charset == "" {
		return defaultEncoding, defaultConfidence, nil
	}
	return res.Charset, float64(res.Confidence) / 100, nil
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.WithStack(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return true
	}
	return false
}

func isLatin1(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "iso-8859-1", "latin-1", "latin1", "l1":
		return true
	}
	return false
}

// decode converts data to UTF-8 text. Bytes that are invalid in the named
// encoding yield errInvalidBytes; an unknown name is a different error.
func decode(data []byte, name string) (string, error) {
	switch {
	case isUTF8(name):
		data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		if !utf8.Valid(data) {
			return "", errInvalidBytes
		}
		return string(data), nil
	case isLatin1(name):
		return decodeWith(charmap.ISO8859_1, data)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", errors.Errorf("unknown encoding %q: %w", name, err)
	}
	out, err := decodeWith(enc, data)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(out, utf8.RuneError) && !bytes.Contains(data, []byte("�")) {
		return "", errInvalidBytes
	}
	return out, nil
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Errorf("%w: %v", errInvalidBytes, err)
	}
	return string(out), nil
}

func (delimitedFormat) Read(path string, opts LoadOptions, d *Diagnostics) (*table.Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		first, err := readFirstLine(path)
		if err != nil {
			return nil, err
		}
		delim = DetectDelimiter(first)
	}
	enc, conf := opts.Encoding, 1.0
	if enc == "" {
		var err error
		enc, conf, err = DetectEncoding(path)
		if err != nil {
			return nil, err
		}
	}
	d.Encoding, d.Confidence, d.Delimiter, d.Tier = enc, conf, delim, TierStrict

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	t, strictErr := parseStrict(data, enc, delim)
	if errors.Is(strictErr, errInvalidBytes) {
		d.Encoding, d.Tier = PermissiveEncoding, TierEncodingRetry
		t, strictErr = parseStrict(data, PermissiveEncoding, delim)
	}
	if strictErr == nil {
		return t, nil
	}
	if errors.Is(strictErr, errEmpty) {
		return nil, errors.Errorf("%s: %w", path, strictErr)
	}

	// robust tier: permissive decoding, sniffed delimiter, malformed rows skipped
	text, _ := decode(data, PermissiveEncoding)
	if opts.Delimiter == 0 {
		delim = rune(SniffDelimiter([]byte(text)))
	}
	t, skipped, err := parseRobust(text, delim)
	if err != nil {
		return nil, errors.Errorf("%s: robust parse failed after %v: %w", path, strictErr, err)
	}
	d.Encoding, d.Delimiter, d.Tier, d.SkippedRows = PermissiveEncoding, delim, TierRobust, skipped
	d.Degraded = &errs.ParseDegraded{Path: path, Tier: string(TierRobust), SkippedRows: skipped, Err: strictErr}
	return t, nil
}

var errEmpty = errors.Base("no columns to parse")

func parseStrict(data []byte, enc string, delim rune) (*table.Table, error) {
	text, err := decode(data, enc)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(records) == 0 {
		return nil, errEmpty
	}
	return table.FromRecords(records[0], records[1:]), nil
}

func parseRobust(text string, delim rune) (*table.Table, int, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var header []string
	var rows [][]string
	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, skipped, errors.WithStack(err)
		}
		if header == nil {
			header = rec
			continue
		}
		if len(rec) != len(header) {
			skipped++
			continue
		}
		rows = append(rows, rec)
	}
	if header == nil {
		return nil, skipped, errEmpty
	}
	return table.FromRecords(header, rows), skipped, nil
}

// SniffDelimiter picks the candidate whose per-line count is most consistent
// (lowest variance to mean ratio) over the first lines of sample.
func SniffDelimiter(sample []byte) byte {
	lines := bytes.SplitN(sample, []byte("\n"), sniffLines+1)
	if len(lines) > sniffLines {
		lines = lines[:sniffLines]
	}
	best, bestScore := byte(','), math.MaxFloat64
	for _, c := range sniffCandidates {
		counts := make([]float64, 0, len(lines))
		for _, ln := range lines {
			if len(bytes.TrimSpace(ln)) == 0 {
				continue
			}
			counts = append(counts, float64(countOutsideQuotes(ln, c)))
		}
		if len(counts) == 0 {
			continue
		}
		mean, variance := meanVariance(counts)
		if mean < 1 {
			continue
		}
		if score := variance / mean; score < bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func countOutsideQuotes(line []byte, c byte) int {
	n, inQuote := 0, false
	for _, b := range line {
		switch {
		case b == '"':
			inQuote = !inQuote
		case b == c && !inQuote:
			n++
		}
	}
	return n
}

func meanVariance(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return m, ss / float64(len(xs))
}

func (delimitedFormat) Write(w io.Writer, t *table.Table, path string) error {
	cw := csv.NewWriter(w)
	if strings.EqualFold(extOf(path), ".tsv") {
		cw.Comma = '\t'
	}
	header, rows := t.Records()
	if err := cw.Write(header); err != nil {
		return errors.WithStack(err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
