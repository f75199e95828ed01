package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitQueriesSkipsBlankStatements(t *testing.T) {
	content := "create table a (id int);\n\ncreate index a_id on a (id);\n"

	assert.Equal(t, []string{
		"create table a (id int)",
		"create index a_id on a (id)",
	}, splitQueries(content))
}

func TestSplitQueriesEmptyFile(t *testing.T) {
	assert.Empty(t, splitQueries("\n  \n"))
}
