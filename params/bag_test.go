package params_test

import (
	"errors"
	"testing"

	"github.com/flaphl/injection/params"
)

func TestBagSetGet(t *testing.T) {
	bag := params.NewParameterBag()
	bag.Set("db.host", "localhost")
	bag.Set("db.port", 5432)

	v, err := bag.Get("db.host")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "localhost" {
		t.Fatalf("expected localhost, got %v", v)
	}

	// 缺失参数必须报 ParameterNotFoundError，而不是返回零值
	_, err = bag.Get("missing")
	var notFound *params.ParameterNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ParameterNotFoundError, got %v", err)
	}
	if notFound.Name != "missing" {
		t.Fatalf("expected name 'missing', got %q", notFound.Name)
	}
}

func TestBagGetWithDefault(t *testing.T) {
	bag := params.NewParameterBag(map[string]any{"a": 1})

	if v := bag.GetWithDefault("a", 99); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	if v := bag.GetWithDefault("b", 99); v != 99 {
		t.Fatalf("expected default 99, got %v", v)
	}
}

func TestBagHasRemoveCount(t *testing.T) {
	bag := params.NewParameterBag()
	bag.SetMany(map[string]any{"x": 1, "y": 2})

	if !bag.Has("x") {
		t.Fatal("expected x to exist")
	}
	if bag.Count() != 2 {
		t.Fatalf("expected 2 parameters, got %d", bag.Count())
	}

	bag.Remove("x")
	if bag.Has("x") {
		t.Fatal("expected x to be removed")
	}

	bag.Clear()
	if bag.Count() != 0 {
		t.Fatalf("expected empty bag, got %d", bag.Count())
	}
}

func TestBagKeysSorted(t *testing.T) {
	bag := params.NewParameterBag(map[string]any{"c": 1, "a": 2, "b": 3})
	keys := bag.Keys()
	expected := []string{"a", "b", "c"}
	for i, k := range expected {
		if keys[i] != k {
			t.Fatalf("expected keys %v, got %v", expected, keys)
		}
	}
}

func TestBagResolveInt(t *testing.T) {
	bag := params.NewParameterBag(map[string]any{
		"n":   "42",
		"f":   3.9,
		"bad": "not-a-number",
	})

	v, err := bag.Resolve("n", params.TypeInt)
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %v (err %v)", v, err)
	}
	v, err = bag.Resolve("f", params.TypeInt)
	if err != nil || v != 3 {
		t.Fatalf("expected truncation to 3, got %v (err %v)", v, err)
	}

	_, err = bag.Resolve("bad", params.TypeInt)
	var perr *params.ParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParameterError, got %v", err)
	}
}

func TestBagResolveBool(t *testing.T) {
	bag := params.NewParameterBag()

	cases := map[string]struct {
		value any
		want  bool
	}{
		"yes":      {"yes", true},
		"on":       {"ON", true},
		"one":      {"1", true},
		"true":     {"true", true},
		"no":       {"no", false},
		"off":      {"off", false},
		"zero":     {"0", false},
		"false":    {"FALSE", false},
		"empty":    {"", false},
		"fallback": {"anything-else", true},
		"int":      {7, true},
	}

	for name, tc := range cases {
		bag.Set(name, tc.value)
		v, err := bag.Resolve(name, params.TypeBool)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if v != tc.want {
			t.Fatalf("%s: expected %v for %v, got %v", name, tc.want, tc.value, v)
		}
	}
}

func TestBagResolveArray(t *testing.T) {
	bag := params.NewParameterBag(map[string]any{
		"json":  `["a","b"]`,
		"csv":   "a, b ,c",
		"slice": []any{1, 2},
	})

	v, err := bag.Resolve("json", params.TypeArray)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if arr := v.([]any); len(arr) != 2 || arr[0] != "a" {
		t.Fatalf("json: unexpected result %v", v)
	}

	// 非 JSON 字符串兜底为逗号切分并去除空白
	v, err = bag.Resolve("csv", params.TypeArray)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if arr := v.([]any); len(arr) != 3 || arr[1] != "b" {
		t.Fatalf("csv: unexpected result %v", v)
	}

	v, err = bag.Resolve("slice", params.TypeArray)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if arr := v.([]any); len(arr) != 2 {
		t.Fatalf("slice: unexpected result %v", v)
	}
}

func TestBagResolveObject(t *testing.T) {
	bag := params.NewParameterBag(map[string]any{
		"m":   map[string]any{"k": "v"},
		"str": `{"k":"v"}`,
	})

	for _, name := range []string{"m", "str"} {
		v, err := bag.Resolve(name, params.TypeObject)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if obj := v.(map[string]any); obj["k"] != "v" {
			t.Fatalf("%s: unexpected result %v", name, v)
		}
	}
}

func TestBagValidate(t *testing.T) {
	min := 1.0
	max := 65535.0
	bag := params.NewParameterBag(map[string]any{
		"port": 8080,
		"env":  "prod",
	})

	schema := params.Schema{
		"port": {Required: true, Type: params.TypeInt, Min: &min, Max: &max},
		"env":  {Required: true, In: []any{"dev", "prod"}},
	}
	if err := bag.Validate(schema); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	// 必填缺失
	err := bag.Validate(params.Schema{"secret": {Required: true}})
	if err == nil {
		t.Fatal("expected missing required parameter error")
	}

	// 范围越界
	bag.Set("port", 70000)
	if err := bag.Validate(schema); err == nil {
		t.Fatal("expected max violation")
	}

	// 枚举之外
	bag.Set("port", 8080)
	bag.Set("env", "staging")
	if err := bag.Validate(schema); err == nil {
		t.Fatal("expected enum violation")
	}

	// 正则约束
	bag.Set("env", "prod")
	bag.Set("version", "v1.2.3")
	if err := bag.Validate(params.Schema{"version": {Regex: `^v\d+\.\d+\.\d+$`}}); err != nil {
		t.Fatalf("expected regex match, got %v", err)
	}
	bag.Set("version", "nope")
	if err := bag.Validate(params.Schema{"version": {Regex: `^v\d+\.\d+\.\d+$`}}); err == nil {
		t.Fatal("expected regex violation")
	}
}
