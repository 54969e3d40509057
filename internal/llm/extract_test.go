package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"plain array":         {in: `[{"a":1}]`, want: `[{"a":1}]`},
		"json fence":          {in: "```json\n[{\"a\":1}]\n```", want: `[{"a":1}]`},
		"bare fence":          {in: "```\n[1,2]\n```", want: `[1,2]`},
		"prose around fence":  {in: "Here are the questions:\n```json\n[{\"a\":1}]\n```\nGood luck!", want: `[{"a":1}]`},
		"prose without fence": {in: "Sure! [{\"a\":1}] Hope this helps.", want: `[{"a":1}]`},
		"object":              {in: "```json\n{\"score\": 3}\n```", want: `{"score": 3}`},
		"nested object":       {in: `[{"x":{"y":1}}]`, want: `[{"x":{"y":1}}]`},
		"no json":             {in: "no questions today", want: "no questions today"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}

func TestExtractJSONDecodesFencedArray(t *testing.T) {
	raw := "```json\n[\n  {\"text\": \"2+2?\", \"options\": [{\"id\": \"a\", \"text\": \"4\"}]}\n]\n```"

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(ExtractJSON(raw)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "2+2?", out[0]["text"])
}
