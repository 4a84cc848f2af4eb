package out

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ggonzalez94/bridgectl/internal/config"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/registry"
)

// Render writes env as indented JSON or as plain text. Field selection and
// results-only shape the data only; an error body is always written.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = Select(data, settings.SelectFields)
	}

	if settings.OutputMode != "plain" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if settings.ResultsOnly {
			return enc.Encode(data)
		}
		env.Data = data
		return enc.Encode(env)
	}

	p := &plain{w: w}
	if !settings.ResultsOnly {
		p.header(env)
	}
	if env.Error == nil || !isEmpty(data) {
		p.value(data)
	}
	return p.err
}

// Select keeps the named fields of an object, or of every object in a list.
// A dotted name such as "transaction.status" reaches into nested objects and
// keeps its full name as the output key.
func Select(data any, fields []string) any {
	switch t := generic(data).(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, selectFields(m, fields))
			}
		}
		return out
	case map[string]any:
		return selectFields(t, fields)
	default:
		return t
	}
}

func selectFields(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookup(m, strings.Split(f, ".")); ok {
			out[f] = v
		}
	}
	return out
}

func lookup(m map[string]any, path []string) (any, bool) {
	v, ok := m[path[0]]
	if !ok || len(path) == 1 {
		return v, ok
	}
	next, isMap := v.(map[string]any)
	if !isMap {
		return nil, false
	}
	return lookup(next, path[1:])
}

// generic round-trips v through JSON so typed values become maps and lists.
func generic(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func isEmpty(data any) bool {
	v := reflect.ValueOf(data)
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// plain remembers the first write error so the renderers below stay linear.
type plain struct {
	w   io.Writer
	err error
}

func (p *plain) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *plain) header(env model.Envelope) {
	if e := env.Error; e != nil {
		retry := ""
		if e.Retryable {
			retry = " (retryable)"
		}
		p.printf("error %d %s: %s%s\n", e.Code, e.Type, e.Message, retry)
	}
	for _, w := range env.Warnings {
		p.printf("warning: %s\n", w)
	}
}

func (p *plain) value(data any) {
	switch t := data.(type) {
	case model.BridgeTransaction:
		p.transaction(t)
	case []model.BridgeTransaction:
		p.history(t)
	case model.RunResult:
		p.run(t)
	case model.Interpretation:
		p.interpretation(t)
	case []string:
		for i, line := range t {
			p.printf("%d. %s\n", i+1, line)
		}
	default:
		p.generic(data)
	}
}

func (p *plain) transaction(tx model.BridgeTransaction) {
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", tx.ID, tx.Status)
	fmt.Fprintf(tw, "  route\t%s -> %s\n", tx.SourceChain, tx.DestinationChain)
	fmt.Fprintf(tw, "  amount\t%s %s (%s base units)\n", tx.Amount, tx.SourceToken, tx.AmountBaseUnits)
	fmt.Fprintf(tw, "  from\t%s\n", tx.UserAddress)
	if tx.SourceTxHash != "" {
		fmt.Fprintf(tw, "  source tx\t%s\n", withExplorer(tx.SourceChain, tx.SourceTxHash))
	}
	if tx.DestinationTxHash != "" {
		fmt.Fprintf(tw, "  destination tx\t%s\n", withExplorer(tx.DestinationChain, tx.DestinationTxHash))
	}
	if tx.FailureReason != "" {
		fmt.Fprintf(tw, "  reason\t%s\n", tx.FailureReason)
	}
	fmt.Fprintf(tw, "  submitted\t%s\n", tx.Timestamp.UTC().Format(time.RFC3339))
	p.err = tw.Flush()
}

func withExplorer(chain, hash string) string {
	if link := registry.ExplorerTxURL(registry.ChainID(chain), hash); link != "" {
		return hash + " " + link
	}
	return hash
}

func (p *plain) history(txs []model.BridgeTransaction) {
	if len(txs) == 0 {
		p.printf("no transactions\n")
		return
	}
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%s %s\t%s\n",
			tx.ID, tx.Status, tx.SourceChain, tx.DestinationChain, tx.Amount, tx.SourceToken,
			tx.Timestamp.UTC().Format(time.RFC3339))
	}
	p.err = tw.Flush()
}

func (p *plain) run(r model.RunResult) {
	if len(r.Transitions) > 0 {
		steps := make([]string, 0, len(r.Transitions))
		for _, t := range r.Transitions {
			steps = append(steps, string(t.Status))
		}
		p.printf("%s\n", strings.Join(steps, " -> "))
	}
	p.transaction(r.Transaction)
}

func (p *plain) interpretation(in model.Interpretation) {
	i := in.Instruction
	if len(in.MissingFields) > 0 {
		p.printf("missing: %s\n", strings.Join(in.MissingFields, ", "))
		return
	}
	via := string(in.Source)
	if in.Cached {
		via += ", cached"
	}
	p.printf("%s %s from %s to %s (%s)\n", i.Amount, i.Token, i.SourceChain, i.DestinationChain, via)
}

// generic prints one key=value line per object, sorted by key.
func (p *plain) generic(data any) {
	switch t := generic(data).(type) {
	case nil:
		p.printf("null\n")
	case []any:
		if len(t) == 0 {
			p.printf("[]\n")
		}
		for _, item := range t {
			p.printf("%s\n", line(item))
		}
	default:
		p.printf("%s\n", line(t))
	}
}

func line(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(buf)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		val := m[k]
		if _, nested := val.(map[string]any); nested {
			buf, _ := json.Marshal(val)
			parts = append(parts, fmt.Sprintf("%s=%s", k, buf))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, val))
	}
	return strings.Join(parts, " ")
}
