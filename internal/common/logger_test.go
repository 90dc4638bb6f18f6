package common_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-sheets-bot/internal/common"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLogger(common.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("pipeline.ocr.ok")
	require.Zero(t, buf.Len())

	logger.Warn("pipeline.append.failed", "order_id", "abc")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "pipeline.append.failed", rec["msg"])
	require.Equal(t, "abc", rec["order_id"])
}

func TestNewLogger_TextDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := common.NewLogger(common.LogConfig{Level: "bogus"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown k=v")
}
