package transcript

import "testing"

func TestProbe(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"user", `{"type":"user","foo":"bar"}`, KindUser},
		{"assistant", `{"type":"assistant","message":{}}`, KindAssistant},
		{"summary with spaces", `{"type": "summary","summary":"x"}`, KindSummary},
		{"nested type ignored", `{"message":{"type":"message"},"type":"assistant"}`, KindAssistant},
		{"type as value", `{"label":"type","type":"user"}`, KindUser},
		{"system not modelled", `{"type":"system","subtype":"turn_duration"}`, ""},
		{"unknown type", `{"type":"progress","data":{}}`, ""},
		{"no type field", `{"message":"hello"}`, ""},
		{"empty", `{}`, ""},
		{"leading whitespace", ` {"type":"user"}`, KindUser},
		{"arrays and scalars skipped", `{"tags":["type",{"type":"x"}],"n":3,"ok":true,"type":"summary"}`, KindSummary},
		{"type not a string", `{"type":7}`, ""},
		{"escaped quote in earlier value", `{"text":"say \"type\"","type":"assistant"}`, KindAssistant},
		{"not an object", `["type","user"]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probe([]byte(tt.input))
			if got != tt.want {
				t.Errorf("Probe(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// FuzzProbe checks that the byte-level probe never panics and only ever
// reports a modelled kind.
func FuzzProbe(f *testing.F) {
	f.Add([]byte(`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`))
	f.Add([]byte(`{"type":"assistant","message":{"id":"x","usage":{}}}`))
	f.Add([]byte(`{"type":"summary","summary":"Fix tests","leafUuid":"u1"}`))
	f.Add([]byte(`{"data":{"type":"nested"},"type":"user"}`))
	f.Add([]byte(`not json`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"type":null}`))
	f.Add([]byte(`{"type":123}`))
	f.Add([]byte(``))
	f.Add([]byte(`{"type":"user`)) // unterminated string
	f.Add([]byte(`{"a":"\`))

	f.Fuzz(func(t *testing.T, data []byte) {
		switch got := Probe(data); got {
		case "", KindUser, KindAssistant, KindSummary:
		default:
			t.Errorf("unexpected kind %q from input %q", got, data)
		}
	})
}
