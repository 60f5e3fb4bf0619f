package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xtxerr/rrdsink/internal/sample"
)

// Defaults used in generated template snippets. Operators are expected to
// adjust them before pasting the snippet into a template.
const (
	generateType      = "GAUGE"
	generateHeartbeat = 400
)

// generate logs one <datasource> element per numeric sample, so a template
// can be bootstrapped from what the collectors actually deliver. Colliding
// identifiers are reported but do not stop the cycle.
func (w *Writer) generate(ctx context.Context, clog *slog.Logger, samples []sample.Sample) {
	seen := make(map[string]string)

	var b strings.Builder
	for _, s := range samples {
		if !sample.IsNumeric(s.Value) {
			continue
		}

		id := w.derive(s.SeriesGroup, s.MetricName, s.SubKey)
		if prev, dup := seen[id]; dup {
			clog.WarnContext(ctx, "generated identifier collides",
				"id", id, "first", prev, "second", s.String())
			continue
		}
		seen[id] = s.String()

		b.WriteString(Snippet(id, s.String()))
		b.WriteByte('\n')
	}

	if b.Len() > 0 {
		clog.DebugContext(ctx, "generated template snippet", "datasources", len(seen), "xml", b.String())
	}
}

// Snippet returns a template <datasource> element for id. The comment
// names the sample the identifier was derived from.
func Snippet(id, origin string) string {
	return fmt.Sprintf("<datasource><!-- %s --><name>%s</name><type>%s</type><heartbeat>%d</heartbeat><min>U</min><max>U</max></datasource>",
		origin, id, generateType, generateHeartbeat)
}
