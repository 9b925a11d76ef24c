package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/nightsync/internal/cmd/table"
)

type row struct {
	Date  string `json:"date"`
	Value int    `json:"value,omitempty"`
	Note  string
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", "wide", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestRenderUsesTableConverter(t *testing.T) {
	var buf bytes.Buffer
	data := table.Data{Headers: []string{"Date"}, Rows: [][]string{{"2025-08-15"}}}
	require.NoError(t, Render(&buf, FormatTable, []row{{Date: "x"}}, func() Data { return data }))
	assert.Contains(t, buf.String(), "2025-08-15")

	buf.Reset()
	require.NoError(t, Render(&buf, FormatJSON, []row{{Date: "x"}}, func() Data { return data }))
	assert.Contains(t, buf.String(), `"date": "x"`)

	buf.Reset()
	require.NoError(t, Render(&buf, FormatYAML, []row{{Date: "x", Value: 2}}, nil))
	assert.Contains(t, buf.String(), "value: 2")
}

func TestTableReflection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, []row{{Date: "2025-08-15", Value: 1, Note: "n"}}))
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "NOTE")
	assert.Contains(t, out, "2025-08-15")

	d := toTableData(&row{Date: "d"})
	require.NotNil(t, d)
	assert.Equal(t, []string{"Date", "d"}, d.Rows[0])

	assert.Nil(t, toTableData(42))
}
