package testlink

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Parser finds external test case ids in one text field of a test.
type Parser interface {
	// Parse returns the ids in the parser's field that match matcher.
	Parse(test Test, matcher *regexp.Regexp) []string
}

// NameParser finds external ids in a test's name.
//
// A test named "abc-101 verifies login" yields "abc-101" for prefix "abc".
type NameParser struct{}

// Parse implements Parser.
func (NameParser) Parse(test Test, matcher *regexp.Regexp) []string {
	return Extract(matcher, test.Name)
}

// DocParser finds external ids in a test's documentation. For godog
// scenarios the documentation is the scenario's tags.
type DocParser struct{}

// Parse implements Parser.
func (DocParser) Parse(test Test, matcher *regexp.Regexp) []string {
	return Extract(matcher, test.Doc)
}

// DefaultParsers returns the parsers used when none are configured.
func DefaultParsers() []Parser {
	return []Parser{NameParser{}, DocParser{}}
}

// Extract returns every "<prefix>-<digits>" token of text matched by matcher.
// An empty text or nil matcher yields nil.
func Extract(matcher *regexp.Regexp, text string) []string {
	if matcher == nil || text == "" {
		return nil
	}
	return matcher.FindAllString(text, -1)
}

// CompileMatchers compiles one matcher per prefix. A prefix is a literal or a
// regular expression fragment; the matcher is "<prefix>-\d+". Blank prefixes
// are skipped, and no prefixes at all compiles DefaultTestPrefix.
func CompileMatchers(prefixes ...string) ([]*regexp.Regexp, error) {
	var matchers []*regexp.Regexp
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		m, err := regexp.Compile(fmt.Sprintf(`%s-\d+`, prefix))
		if err != nil {
			return nil, configErrorf("invalid test prefix %q: %v", prefix, err)
		}
		matchers = append(matchers, m)
	}
	if len(matchers) == 0 {
		return []*regexp.Regexp{regexp.MustCompile(DefaultTestPrefix + `-\d+`)}, nil
	}
	return matchers, nil
}

// MultiParser runs every parser with every matcher and unions the results.
type MultiParser struct {
	parsers  []Parser
	matchers []*regexp.Regexp
}

// NewMultiParser returns a MultiParser. With no parsers it uses DefaultParsers.
func NewMultiParser(matchers []*regexp.Regexp, parsers ...Parser) *MultiParser {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	return &MultiParser{parsers: parsers, matchers: matchers}
}

// Testcases returns the sorted, de-duplicated external ids found in test.
func (m *MultiParser) Testcases(test Test) []string {
	seen := make(map[string]struct{})
	for _, p := range m.parsers {
		for _, matcher := range m.matchers {
			for _, id := range p.Parse(test, matcher) {
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
