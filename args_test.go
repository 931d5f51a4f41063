package hgclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddIf(t *testing.T) {
	assert.Equal(t, []string{"--force"}, addIf(nil, true, "--force"))
	assert.Equal(t, []string{}, addIf([]string{}, false, "--force"))
}

func TestAddPairIfNonEmpty(t *testing.T) {
	assert.Equal(t, []string{"--rev", "1::"}, addPairIfNonEmpty(nil, "--rev", "1::"))
	assert.Equal(t, []string{}, addPairIfNonEmpty([]string{}, "--rev", ""))
}

func TestAddAllPairIfNonEmpty(t *testing.T) {
	got := addAllPairIfNonEmpty(nil, "--include", []string{"a", "", "b"})
	assert.Equal(t, []string{"--include", "a", "--include", "b"}, got)
}

func TestAddDateIf(t *testing.T) {
	date := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	got := addDateIf(nil, "--date", &date)
	assert.Equal(t, []string{"--date", "2023-01-02 03:04:05"}, got)

	assert.Equal(t, []string{}, addDateIf([]string{}, "--date", nil))
}
