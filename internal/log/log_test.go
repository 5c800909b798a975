package log

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func capture(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })
	return logs
}

func TestRequestFieldsAttached(t *testing.T) {
	logs := capture(t)

	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/x", func(c *fiber.Ctx) error {
		c.Locals("user_id", "u-1")
		Audit(c, "order.commit", map[string]any{"order_id": "o-1"})
		Error(c, "order.commit.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	_, err := app.Test(httptest.NewRequest("GET", "/x", nil))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)

	audit := entries[0].ContextMap()
	assert.Equal(t, "order.commit", entries[0].Message)
	assert.Equal(t, "u-1", audit["user_id"])
	assert.Equal(t, "GET", audit["method"])
	assert.NotEmpty(t, audit["req_id"])
	assert.Equal(t, map[string]any{"order_id": "o-1", "kind": "audit"}, audit["fields"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["err"])
}

func TestBgLevels(t *testing.T) {
	logs := capture(t)
	Bg("outbox.task.done", nil, map[string]any{"id": "t1"})
	Bg("outbox.task.fail", errors.New("kafka down"), nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
