package hgclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileStatusStringRoundTrip(t *testing.T) {
	for _, c := range []byte{'M', 'A', 'R', 'C', '!', '?', 'I', ' ', 'U'} {
		st := parseFileStatus(c)
		assert.Equal(t, string(c), st.String())
	}
}

func TestFileStatusUnrecognizedDefaultsToClean(t *testing.T) {
	assert.Equal(t, Clean, parseFileStatus('Z'))
}

func TestFlagForFileStatus(t *testing.T) {
	cases := map[FileStatus]byte{
		Modified: 'm',
		Added:    'a',
		Removed:  'r',
		Clean:    'c',
		Missing:  'd',
		Unknown:  'u',
		Ignored:  'i',
	}
	for status, want := range cases {
		flag, ok := flagForFileStatus(status)
		assert.True(t, ok)
		assert.Equal(t, want, flag)
	}

	for _, status := range []FileStatus{FileDefault, FileAll, Origin, Conflicted} {
		_, ok := flagForFileStatus(status)
		assert.False(t, ok)
	}
}

func TestArchiveTypeFlags(t *testing.T) {
	cases := map[ArchiveType]string{
		ArchiveDefault:         "",
		ArchiveDirectory:       "files",
		ArchiveTar:             "tar",
		ArchiveTarBzip2:        "tbz2",
		ArchiveTarGzip:         "tgz",
		ArchiveUncompressedZip: "uzip",
		ArchiveZip:             "zip",
	}
	for archiveType, want := range cases {
		assert.Equal(t, want, archiveType.flag())
	}
}
