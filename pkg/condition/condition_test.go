package condition

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

func exportJSON(t *testing.T, expr string) string {
	t.Helper()
	c, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): unexpected error: %v", expr, err)
	}
	data, err := json.Marshal(c.Export())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return string(data)
}

func TestParse_Export(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{`var2 == false`, `{"equals":["@variables('var2')",false]}`},
		{`a != "test"`, `{"not":{"equals":["@variables('a')","test"]}}`},
		{`count >= 10`, `{"greaterOrEquals":["@variables('count')",10]}`},
		{`ratio < 0.5`, `{"less":["@variables('ratio')",0.5]}`},
		{`a > 1 and b <= 2`, `{"and":[{"greater":["@variables('a')",1]},{"lessOrEquals":["@variables('b')",2]}]}`},
		{`a == 1 or b == 2 and c == 3`, `{"or":[{"equals":["@variables('a')",1]},{"and":[{"equals":["@variables('b')",2]},{"equals":["@variables('c')",3]}]}]}`},
		{`(a == 1 or b == 2) and c == 3`, `{"and":[{"or":[{"equals":["@variables('a')",1]},{"equals":["@variables('b')",2]}]},{"equals":["@variables('c')",3]}]}`},
		{`not done == true`, `{"not":{"equals":["@variables('done')",true]}}`},
		{`not not ok`, `{"not":{"not":"@variables('ok')"}}`},
		{`a == true or b != false`, `{"or":[{"equals":["@variables('a')",true]},{"not":{"equals":["@variables('b')",false]}}]}`},
	}
	for _, tt := range tests {
		if got := exportJSON(t, tt.expr); got != tt.want {
			t.Errorf("Parse(%q)\n got  %s\n want %s", tt.expr, got, tt.want)
		}
	}
}

func TestParse_KeywordPrefixedIdentifiers(t *testing.T) {
	got := exportJSON(t, `notes == android`)
	want := `{"equals":["@variables('notes')","@variables('android')"]}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParse_QuotedStringKeepsSpaces(t *testing.T) {
	got := exportJSON(t, `title == "hello and goodbye"`)
	want := `{"equals":["@variables('title')","hello and goodbye"]}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		``,
		`a == "open`,
		`a == 1)`,
		`(a == 1`,
		`a ==`,
		`a b`,
		`a = 1`,
		`a == 1 & b`,
		`not`,
	}
	for _, expr := range tests {
		_, err := Parse(expr)
		if err == nil {
			t.Errorf("Parse(%q): expected error", expr)
			continue
		}
		if !errors.Is(err, core.ErrInvalidExpression) {
			t.Errorf("Parse(%q): expected ErrInvalidExpression, got %v", expr, err)
		}
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse(`(`)
}

func TestString(t *testing.T) {
	c := MustParse(`a == 1`)
	if c.String() != `a == 1` {
		t.Errorf("unexpected source: %s", c.String())
	}
}
