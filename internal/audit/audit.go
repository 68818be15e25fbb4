// Package audit emite eventos de auditoría (transiciones de transacciones,
// votos, cambios de claves) como líneas estructuradas del logger "audit".
package audit

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// Log escribe un evento de auditoría. fields no debe contener material de claves.
func Log(ctx context.Context, event string, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys)+2)
	zf = append(zf, zap.String("event", event), zap.Time("ts", time.Now().UTC()))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	logger.From(ctx).Named("audit").Info(event, zf...)
}
