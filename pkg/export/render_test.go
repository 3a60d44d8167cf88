package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decisionTable() Table {
	return Table{
		Headers: []string{"workItemId", "decision", "reason"},
		Rows: []map[string]string{
			{"workItemId": "fp-1", "decision": "updated", "reason": ""},
			{"workItemId": "fp-2", "decision": "skipped", "reason": "SCOPE_NOT_FOUND"},
		},
		Footer: []string{"updated=1 skipped=1"},
	}
}

func TestCSVRendererRender(t *testing.T) {
	out, err := NewCSVRenderer().Render(decisionTable())
	require.NoError(t, err)
	assert.Equal(t, "workItemId,decision,reason\nfp-1,updated,\nfp-2,skipped,SCOPE_NOT_FOUND\n", string(out))
}

func TestCSVRendererRequiresHeaders(t *testing.T) {
	_, err := NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestPDFRendererRender(t *testing.T) {
	out, err := NewPDFRenderer().Render(decisionTable(), "backfill run")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFRenderer().Render(Table{}, "")
	assert.Error(t, err)
}

func TestCSVRendererWritesMissingCellsEmpty(t *testing.T) {
	out, err := NewCSVRenderer().Render(Table{
		Headers: []string{"workItemId", "zoneId"},
		Rows:    []map[string]string{{"workItemId": "fp-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "workItemId,zoneId\nfp-1,\n", string(out))
}
