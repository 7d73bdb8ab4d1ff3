package eval

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/procrun/pkg/vars"
)

func scope(kv ...any) *vars.Context {
	c := vars.New()
	for i := 0; i+1 < len(kv); i += 2 {
		c.Set(kv[i].(string), kv[i+1])
	}
	return c
}

func TestSubstitute_Literal(t *testing.T) {
	got := Substitute("hello world", scope(), Raw)
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_Raw(t *testing.T) {
	c := scope("host", "srv1", "port", 8080)
	got := Substitute("curl https://${host}:${port}/healthz", c, Raw)
	if got != "curl https://srv1:8080/healthz" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_RepeatedPlaceholder(t *testing.T) {
	c := scope("v", "1.2.3")
	got := Substitute("git tag v${v} && git push origin v${v}", c, Raw)
	if got != "git tag v1.2.3 && git push origin v1.2.3" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_UnknownLeftAlone(t *testing.T) {
	c := scope("a", "x")
	got := Substitute("${a}-${missing}", c, Raw)
	if got != "x-${missing}" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_PrefixNamesDoNotCollide(t *testing.T) {
	c := scope("ver", "OLD", "version", "2.0")
	got := Substitute("${version} ${ver}", c, Raw)
	if got != "2.0 OLD" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_ValuesNotReexpanded(t *testing.T) {
	c := scope("a", "${b}", "b", "nope")
	got := Substitute("[${a}]", c, Raw)
	if got != "[${b}]" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_Quoted(t *testing.T) {
	c := scope("env", "prod", "ok", true)
	got := Substitute("${env} == 'prod' and ${ok} == 'True'", c, Quoted)
	if got != "'prod' == 'prod' and 'True' == 'True'" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_QuotedEscapes(t *testing.T) {
	c := scope("msg", `it's a \ test`)
	got := Substitute("${msg}", c, Quoted)
	if got != `'it\'s a \\ test'` {
		t.Errorf("got %q", got)
	}
	ok, err := Default.EvalBool(got + ` == "it's a \\ test"`)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("quoted literal did not round-trip through the evaluator")
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	c := scope("name", "api")
	once := Substitute("deploy ${name}", c, Raw)
	twice := Substitute(once, c, Raw)
	if once != twice {
		t.Errorf("second pass changed %q to %q", once, twice)
	}
}

func TestSubstitute_MalformedPlaceholders(t *testing.T) {
	c := scope("b", "B")
	tests := map[string]string{
		"${":        "${",
		"${}":       "${}",
		"x ${b":     "x ${b",
		"${a${b}":   "${aB",
		"$b {b}":    "$b {b}",
		"${b}${b}}": "BB}",
	}
	for in, want := range tests {
		if got := Substitute(in, c, Raw); got != want {
			t.Errorf("Substitute(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("${a} ${b} ${a} ${}")
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("got %v", got)
	}
	if Placeholders("none here") != nil {
		t.Error("expected nil for a template without placeholders")
	}
}

func TestEvalBool(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`'yes' == 'yes'`, true},
		{`'yes' == 'no'`, false},
		{`'a' != 'b' and 'x' in ['x', 'y']`, true},
		{`not ('1' == '1')`, false},
		{`'2' == '1' or '3' == '3'`, true},
		{`int('42') > 10`, true},
		{`len('abc') == 3`, true},
		{`lower('PROD') == 'prod'`, true},
		{`'release-1.2' startsWith 'release-'`, true},
		{`'v1.2.3' matches '^v[0-9]+'`, true},
		{`'true' == 'True'`, false},
		{`str(True) == 'True'`, true},
		{`str(3.0) == '3.0'`, true},
		{`'1' == 1`, false},
		{`1 == '1'`, false},
		{`'3' != 3`, true},
		{`'1.5' == 1.5`, false},
		{`'True' == True`, false},
		{`int('3') == 3`, true},
		{`True`, true},
		{`None`, false},
		{`''`, false},
		{`'x'`, true},
		{`0`, false},
		{`[]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Default.EvalBool(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("EvalBool(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalBool_Errors(t *testing.T) {
	for _, e := range []string{
		"",
		"'a' ==",
		"${missing} == 'x'",
		"undefined_name == 'x'",
		"int('abc') > 1",
	} {
		if _, err := Default.EvalBool(e); err == nil {
			t.Errorf("EvalBool(%q) expected error", e)
		}
	}
}

func TestEvaluatorRejectsDisabledBuiltins(t *testing.T) {
	for _, e := range []string{
		`now()`,
		`env('HOME')`,
		`toJSON({'a': 1})`,
	} {
		if err := Default.Check(e); err == nil {
			t.Errorf("Check(%q) expected error: function must not be exposed", e)
		}
	}
}

func TestFunctionsTable(t *testing.T) {
	got := strings.Join(Functions(), ",")
	if got != "float,int,len,lower,str,trim,upper" {
		t.Errorf("Functions() = %s", got)
	}
	first := Functions()
	first[0] = "mutated"
	if Functions()[0] == "mutated" {
		t.Error("Functions() must return a copy")
	}
}

func TestTruthy(t *testing.T) {
	if Truthy(nil) || Truthy(false) || Truthy("") || Truthy(0) || Truthy(0.0) || Truthy([]any{}) {
		t.Error("expected falsy values to be false")
	}
	if !Truthy(true) || !Truthy("0") || !Truthy(1) || !Truthy([]any{1}) || !Truthy(map[string]any{"a": 1}) {
		t.Error("expected truthy values to be true")
	}
}

func TestLookupFunc(t *testing.T) {
	calls := 0
	l := LookupFunc(func(name string) (any, bool) {
		calls++
		return strings.ToUpper(name), true
	})
	if got := Substitute("${a}${b}", l, Raw); got != "AB" {
		t.Errorf("got %q", got)
	}
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}
