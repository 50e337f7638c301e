package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/harun/orchestrator/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolExecution(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("read_file", "error"))
	beforeKind := testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("read_file", "sandbox_violation"))

	RecordToolExecution("read_file", 10*time.Millisecond, "sandbox_violation")
	RecordToolExecution("read_file", 10*time.Millisecond, "success")

	assert.Equal(t, before+1, testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("read_file", "error")))
	assert.Equal(t, beforeKind+1, testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("read_file", "sandbox_violation")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("read_file", "success")), 1.0)
}

func TestRecordAgentAndPluginRuns(t *testing.T) {
	m := getMetrics()
	beforeRun := testutil.ToFloat64(m.agentRunTotal.WithLabelValues("capped"))
	beforePlugin := testutil.ToFloat64(m.pluginRunTotal.WithLabelValues("notes", "error"))

	RecordAgentRun("capped", 25)
	RecordPluginRun("notes", time.Second, "error")
	RecordModelCall("anthropic", time.Second, true)
	RecordModelRetry("anthropic")

	assert.Equal(t, beforeRun+1, testutil.ToFloat64(m.agentRunTotal.WithLabelValues("capped")))
	assert.Equal(t, beforePlugin+1, testutil.ToFloat64(m.pluginRunTotal.WithLabelValues("notes", "error")))
}

func TestMetricsHandler(t *testing.T) {
	RecordToolExecution("list_files", time.Millisecond, "success")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "tool_execution_total")
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	SetAuditWriter(&buf)
	defer SetAuditWriter(&bytes.Buffer{})

	ctx := tracing.WithRunID(tracing.WithTraceID(context.Background(), "trace-7"), "run-7")
	RecordToolAudit(ctx, "write_file", "success", map[string]interface{}{"path": "a.txt"})
	RecordPluginAudit(ctx, "notes", "error", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var tool map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &tool))
	assert.Equal(t, "tool", tool["type"])
	assert.Equal(t, "run-7", tool["actor"])
	assert.Equal(t, "execute:write_file", tool["action"])
	assert.Equal(t, "trace-7", tool["trace_id"])

	var plugin map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &plugin))
	assert.Equal(t, "notes", plugin["actor"])
	assert.Equal(t, "plugin:run", plugin["action"])
}

func TestInitAuditLogger(t *testing.T) {
	path := t.TempDir() + "/audit.log"
	require.NoError(t, InitAuditLogger(path))
	defer SetAuditWriter(&bytes.Buffer{})

	RecordToolAudit(context.Background(), "run_command", "timeout", nil)
	require.NoError(t, GetAuditLogger().Close())
	require.NoError(t, GetAuditLogger().Close())
	RecordToolAudit(context.Background(), "run_command", "dropped", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"execute:run_command"`)
	assert.NotContains(t, string(data), "dropped")
}
