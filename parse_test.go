package hgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDelimitedHandshakeHeaders(t *testing.T) {
	input := "capabilities: runcommand getencoding\nencoding: UTF-8\n"
	got := parseDelimited(input, []string{": "})
	assert.Equal(t, "runcommand getencoding", got["capabilities"])
	assert.Equal(t, "UTF-8", got["encoding"])
}

func TestParseDelimitedConfig(t *testing.T) {
	input := "ui.interactive=False\npaging.pager=cat\n\n"
	got := parseDelimited(input, []string{"="})
	assert.Equal(t, "False", got["ui.interactive"])
	assert.Equal(t, "cat", got["paging.pager"])
	assert.Len(t, got, 2)
}

func TestParseStatusLines(t *testing.T) {
	got := parseStatusLines("M file1.txt\n? file2.txt\n")
	assert.Equal(t, Modified, got["file1.txt"])
	assert.Equal(t, Unknown, got["file2.txt"])
}

func TestParseStatusLinesIdempotence(t *testing.T) {
	for _, c := range []byte{'M', 'A', 'R', 'C', '!', '?', 'I', ' ', 'U'} {
		line := string(c) + " path"
		got := parseStatusLines(line)
		assert.Equal(t, parseFileStatus(c), got["path"])
	}
}

func TestParseResolveList(t *testing.T) {
	got := parseResolveList("R resolved.txt\nU pending.txt\n")
	assert.True(t, got["resolved.txt"])
	assert.False(t, got["pending.txt"])
}

func TestParseLogXMLOrderAndBranchFallback(t *testing.T) {
	xml := `<?xml version="1.0"?><log>` +
		`<logentry revision="3" node="abc"><author email="x@y">Name</author>` +
		`<date>2023-01-02T03:04:05+00:00</date><msg>m</msg><branch>default</branch></logentry>` +
		`<logentry revision="2" node="def"><author email="a@b">Other</author>` +
		`<date>2023-01-01T00:00:00+00:00</date><msg>n</msg>` +
		`<extra key="Branch">feature</extra></logentry>` +
		`<logentry revision="1" node="ghi"><author email="c@d">Third</author>` +
		`<date>2022-12-31T00:00:00+00:00</date><msg>o</msg></logentry>` +
		`</log>`

	revs, err := parseLogXML(xml)
	require.NoError(t, err)
	require.Len(t, revs, 3)

	assert.Equal(t, "3", revs[0].RevisionID)
	assert.Equal(t, "abc", revs[0].Hash)
	assert.Equal(t, "default", revs[0].Branch)
	assert.True(t, revs[0].HasBranch)

	assert.Equal(t, "feature", revs[1].Branch)
	assert.True(t, revs[1].HasBranch)

	assert.False(t, revs[2].HasBranch)
}

func TestParseLogXMLMissingDeclaration(t *testing.T) {
	_, err := parseLogXML("<log></log>")
	require.Error(t, err)
	var hgErr *Error
	require.ErrorAs(t, err, &hgErr)
	assert.Equal(t, ParseError, hgErr.Kind)
}

func TestParseVersion(t *testing.T) {
	got, err := parseVersion("Mercurial Distributed SCM (version 5.7.1)\n")
	require.NoError(t, err)
	assert.Equal(t, "5.7.1", got)

	got, err = parseVersion("Mercurial Distributed SCM (version 5.7)\n")
	require.NoError(t, err)
	assert.Equal(t, "5.70", got)

	got, err = parseVersion("(version 5.7)")
	require.NoError(t, err)
	assert.Equal(t, "5.70", got)
}

func TestParseVersionUnparseable(t *testing.T) {
	_, err := parseVersion("not a version string at all")
	require.Error(t, err)
	var hgErr *Error
	require.ErrorAs(t, err, &hgErr)
	assert.Equal(t, ParseError, hgErr.Kind)
}
