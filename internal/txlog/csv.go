package txlog

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"realestate-token-hub/internal/domain"
)

var csvHeader = []string{
	"time", "hash", "type", "status", "property", "amount",
	"from", "to", "token", "block", "error",
}

// RenderCSV renders transactions as CSV string.
func RenderCSV(events []*domain.TxEvent) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(csvHeader)
	for _, e := range events {
		_ = w.Write([]string{
			time.UnixMilli(e.Timestamp).UTC().Format(time.RFC3339),
			e.Hash.Hex(),
			string(e.Kind),
			string(e.Status),
			e.PropertyName,
			e.Amount,
			e.From.Hex(),
			e.To.Hex(),
			e.TokenAddress.Hex(),
			strconv.FormatUint(e.BlockNumber, 10),
			e.Error,
		})
	}
	w.Flush()

	return sb.String()
}
