package hgclient

import (
	"encoding/xml"
	"regexp"
	"strings"
	"time"
)

// parseDelimited splits input on "\n" and, for each line, splits on
// the first occurrence of any delimiter in delims into at most 2
// parts; lines that don't contain one of the delimiters are dropped.
// Used for the handshake's "key: value" headers and for "key=value"
// showconfig/paths output.
func parseDelimited(input string, delims []string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(input, "\n") {
		key, value, ok := splitOnFirstDelimiter(line, delims)
		if ok {
			result[key] = value
		}
	}
	return result
}

func splitOnFirstDelimiter(line string, delims []string) (key, value string, ok bool) {
	bestIdx := -1
	bestDelim := ""
	for _, d := range delims {
		if d == "" {
			continue
		}
		if idx := strings.Index(line, d); idx >= 0 && (bestIdx == -1 || idx < bestIdx) {
			bestIdx = idx
			bestDelim = d
		}
	}
	if bestIdx == -1 {
		return "", "", false
	}
	return line[:bestIdx], line[bestIdx+len(bestDelim):], true
}

// parseStatusLines parses `hg status` output into path -> FileStatus,
// discarding empty lines and any line too short to carry a status
// code and a path.
func parseStatusLines(output string) map[string]FileStatus {
	result := make(map[string]FileStatus)
	for _, line := range strings.Split(output, "\n") {
		if len(line) <= 2 {
			continue
		}
		result[line[2:]] = parseFileStatus(line[0])
	}
	return result
}

// parseResolveList parses `hg resolve --list` output into
// path -> resolved.
func parseResolveList(output string) map[string]bool {
	result := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if len(line) <= 2 {
			continue
		}
		result[strings.TrimSpace(line[2:])] = line[0] == 'R'
	}
	return result
}

// xmlLog mirrors the <log><logentry>...</logentry></log> document hg
// emits for --style xml across log, heads, parents, incoming, outgoing.
type xmlLog struct {
	XMLName xml.Name      `xml:"log"`
	Entries []xmlLogEntry `xml:"logentry"`
}

type xmlLogEntry struct {
	Revision string         `xml:"revision,attr"`
	Node     string         `xml:"node,attr"`
	Author   xmlLogAuthor   `xml:"author"`
	Date     string         `xml:"date"`
	Msg      string         `xml:"msg"`
	Branch   *string        `xml:"branch"`
	Extra    []xmlLogExtra  `xml:"extra"`
}

type xmlLogAuthor struct {
	Email string `xml:"email,attr"`
	Name  string `xml:",chardata"`
}

type xmlLogExtra struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// parseLogXML parses the output of a --style xml command into an
// ordered list of Revisions. The first "<?xml" occurrence starts the
// document; everything before it (banner text, deprecation warnings on
// stderr-merged-to-stdout setups) is ignored.
func parseLogXML(output string) ([]Revision, error) {
	idx := strings.Index(output, "<?xml")
	if idx < 0 {
		return nil, newErrorf(ParseError, nil, "no <?xml declaration found in log output")
	}

	var doc xmlLog
	if err := xml.Unmarshal([]byte(output[idx:]), &doc); err != nil {
		return nil, newErrorf(ParseError, err, "failed to parse xml log output")
	}

	revisions := make([]Revision, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		date, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Date))
		if err != nil {
			return nil, newErrorf(ParseError, err, "failed to parse logentry date %q", e.Date)
		}

		branch, hasBranch := extractBranch(e)

		revisions = append(revisions, Revision{
			RevisionID:  e.Revision,
			Hash:        e.Node,
			Date:        date,
			AuthorName:  strings.TrimSpace(e.Author.Name),
			AuthorEmail: e.Author.Email,
			Message:     e.Msg,
			Branch:      branch,
			HasBranch:   hasBranch,
		})
	}
	return revisions, nil
}

func extractBranch(e xmlLogEntry) (string, bool) {
	if e.Branch != nil {
		if b := strings.TrimSpace(*e.Branch); b != "" {
			return b, true
		}
	}
	for _, extra := range e.Extra {
		if strings.EqualFold(extra.Key, "branch") {
			return strings.TrimSpace(extra.Value), true
		}
	}
	return "", false
}

// versionPattern matches hg's banner line, e.g.
// "Mercurial Distributed SCM (version 5.7.1)".
var versionPattern = regexp.MustCompile(`^[^)]*\(\D*(\d)\.(\d)(?:\.(\d))?([^)]*)\)`)

// parseVersion normalizes `hg version`'s banner line to
// "{major}.{minor}.{trivial}{additional}" when a trivial component is
// present, or "{major}.{minor}0{additional}" when it is absent — hg's
// own convention for a two-component release.
func parseVersion(output string) (string, error) {
	line := strings.TrimSpace(output)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	m := versionPattern.FindStringSubmatch(line)
	if m == nil {
		return "", newErrorf(ParseError, nil, "unable to parse hg version from %q", line)
	}

	major, minor, trivial, additional := m[1], m[2], m[3], m[4]
	if trivial == "" {
		return major + "." + minor + "0" + additional, nil
	}
	return major + "." + minor + "." + trivial + additional, nil
}
