package fingerprint

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeGolden(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"nested_object", `{"b": 1, "a": {"d": [3, 1.0, "x"], "c": null}}`},
		{"html_and_unicode", `{"name": "Café <b>&</b>", "emoji": "😀"}`},
		{"numbers", `[1e2, -0, 0.5, 12345678901234567890123, 1.5e300]`},
		{"utf16_key_order", `{"ﬁ": 2, "😀": 1}`},
		{"escapes", `"tab\there \"quoted\" back\\slash \u0001"`},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Canonicalize([]byte(tt.input))
			require.NoError(t, err)
			g.Assert(t, tt.name, out)
		})
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not_json", `hello`},
		{"trailing_data", `{"a":1} {"b":2}`},
		{"truncated", `{"a":`},
		{"number_out_of_range", `1e400`},
		{"invalid_utf8", "{\"sku\":\"\xff\"}"},
		{"nfc_key_collision", "{\"caf\u00e9\":1,\"cafe\u0301\":2}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		name  string
		a     string
		b     string
		equal bool
	}{
		{"key_order", `{"sku":"A-1","qty":2}`, `{"qty":2,"sku":"A-1"}`, true},
		{"whitespace", `{"sku":"A-1"}`, "{\n  \"sku\" : \"A-1\"\n}", true},
		{"number_form", `{"price":10}`, `{"price":10.0}`, true},
		{"nfc", "{\"name\":\"Caf\u00e9\"}", "{\"name\":\"Cafe\u0301\"}", true},
		{"empty_bodies", ``, "  \n", true},
		{"different_value", `{"qty":2}`, `{"qty":3}`, false},
		{"array_order", `[1,2]`, `[2,1]`, false},
		{"null_vs_missing", `{"a":null}`, `{}`, false},
		{"string_vs_number", `{"a":"1"}`, `{"a":1}`, false},
		{"raw_vs_json", `not json`, `"not json"`, false},
		{"raw_identical", `a=1&b=2`, `a=1&b=2`, true},
		{"raw_order_sensitive", `a=1&b=2`, `b=2&a=1`, false},
		{"invalid_utf8_distinct", "{\"sku\":\"\xff\"}", "{\"sku\":\"\xfe\"}", false},
		{"nfc_key_collision_order", "{\"caf\u00e9\":1,\"cafe\u0301\":2}", "{\"cafe\u0301\":2,\"caf\u00e9\":1}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, fb := Of([]byte(tt.a)), Of([]byte(tt.b))
			assert.Len(t, fa, 64)
			if tt.equal {
				assert.Equal(t, fa, fb)
			} else {
				assert.NotEqual(t, fa, fb)
			}
		})
	}
}

func TestHashWithDomainSeparation(t *testing.T) {
	assert.NotEqual(t, hashWithDomain(DomainJSON, []byte("x")), hashWithDomain(DomainRaw, []byte("x")))
}

func TestOfIsDeterministicForCollidingKeys(t *testing.T) {
	body := []byte("{\"caf\u00e9\":1,\"cafe\u0301\":2}")

	want := Of(body)
	assert.Equal(t, hashWithDomain(DomainRaw, body), want)
	for i := 0; i < 200; i++ {
		require.Equal(t, want, Of(body))
	}
}
