package luaemitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

// loadClient runs the generated chunk and stores its return value in the
// global "Client".
func loadClient(t *testing.T, code string) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)

	fn, err := L.LoadString(code)
	require.NoError(t, err, "generated code does not compile:\n%s", code)
	L.Push(fn)
	require.NoError(t, L.PCall(0, 1, nil))
	L.SetGlobal("Client", L.Get(-1))
	L.Pop(1)
	return L
}

const newClient = `
captured = nil
client = Client:new({
  baseUrl = "https://example.test",
  request = function(opts)
    captured = opts
    return opts
  end
})
`

func table(t *testing.T, L *lua.LState, name string) *lua.LTable {
	t.Helper()
	tbl, ok := L.GetGlobal(name).(*lua.LTable)
	require.True(t, ok, "global %s is %s, not a table", name, L.GetGlobal(name).Type())
	return tbl
}

func str(tbl *lua.LTable, keys ...string) string {
	var v lua.LValue = tbl
	for _, k := range keys {
		t, ok := v.(*lua.LTable)
		if !ok {
			return "<missing>"
		}
		v = t.RawGetString(k)
	}
	if v == lua.LNil {
		return "<nil>"
	}
	return v.String()
}

func run(t *testing.T, opts Options, snippet string) *lua.LState {
	t.Helper()
	L := loadClient(t, Render(sampleTree(), opts))
	require.NoError(t, L.DoString(snippet))
	return L
}

func TestRuntime_PathParamDotCall(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), `
captured = nil
client = Client:new({
  baseUrl = "https://example.test",
  baseHeaders = { ["X-Base"] = "base", ["X-Override"] = "base" },
  request = function(opts)
    captured = opts
    return opts
  end
})
client.users.flags.get("123", {
  headers = { ["X-Override"] = "opt", ["X-Opt"] = "opt" }
})
`)
	c := table(t, L, "captured")
	assert.Equal(t, "GET", str(c, "method"))
	assert.Equal(t, "https://example.test/users/123/flags", str(c, "url"))
	assert.Equal(t, "base", str(c, "headers", "X-Base"))
	assert.Equal(t, "opt", str(c, "headers", "X-Override"))
	assert.Equal(t, "opt", str(c, "headers", "X-Opt"))
}

func TestRuntime_ReceiverCall(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.users.flags:get("456")
`)
	c := table(t, L, "captured")
	assert.Equal(t, "GET", str(c, "method"))
	assert.Equal(t, "https://example.test/users/456/flags", str(c, "url"))
}

func TestRuntime_BothConventionsMatch(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
local opts = { body = "b", headers = { H = "1" }, query = { q = "x" }, binary = true, redirect = false, timeout = 5 }
client.users.flags.put("9", opts)
first = captured
client.users.flags:put("9", opts)
second = captured
client["end"]["flag-set"].get("f")
third = captured
client["end"]["flag-set"]:get("f")
fourth = captured
`)
	first, second := table(t, L, "first"), table(t, L, "second")
	for _, key := range []string{"url", "method", "body", "binary", "redirect", "timeout"} {
		assert.Equal(t, str(first, key), str(second, key), key)
	}
	assert.Equal(t, "https://example.test/users/9/flags?q=x", str(first, "url"))
	assert.Equal(t, "PUT", str(first, "method"))
	assert.Equal(t, "1", str(second, "headers", "H"))
	assert.Equal(t, "true", str(first, "binary"))
	assert.Equal(t, "false", str(first, "redirect"))
	assert.Equal(t, "5", str(first, "timeout"))

	assert.Equal(t, "https://example.test/end/f/flag-set", str(table(t, L, "third"), "url"))
	assert.Equal(t, str(table(t, L, "third"), "url"), str(table(t, L, "fourth"), "url"))
}

func TestRuntime_BodyAndHeaders(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.echo.post({
  body = "hello",
  headers = { ["Content-Type"] = "text/plain" }
})
`)
	c := table(t, L, "captured")
	assert.Equal(t, "POST", str(c, "method"))
	assert.Equal(t, "https://example.test/echo", str(c, "url"))
	assert.Equal(t, "hello", str(c, "body"))
	assert.Equal(t, "text/plain", str(c, "headers", "Content-Type"))
}

func TestRuntime_DuplicateParamNames(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.orgs.members.get("o1", "m2")
`)
	assert.Equal(t, "https://example.test/orgs/o1/members/m2", str(table(t, L, "captured"), "url"))
}

func TestRuntime_RoundTrip(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.a.b.get(42, {})
`)
	c := table(t, L, "captured")
	assert.Equal(t, "GET", str(c, "method"))
	assert.Equal(t, "https://example.test/a/42/b", str(c, "url"))
}

func TestRuntime_ParamShadowingLocals(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.x.get("v", { headers = { A = "1" } })
`)
	c := table(t, L, "captured")
	assert.Equal(t, "https://example.test/x/v", str(c, "url"))
	assert.Equal(t, "1", str(c, "headers", "A"))
}

func TestRuntime_RootAndMarkerMethods(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client.get()
root = captured
client:get()
rootSelf = captured
client.beta.post()
beta = captured
`)
	assert.Equal(t, "https://example.test/", str(table(t, L, "root"), "url"))
	assert.Equal(t, "https://example.test/", str(table(t, L, "rootSelf"), "url"))
	assert.Equal(t, "POST", str(table(t, L, "beta"), "method"))
}

func TestRuntime_QueryEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		call string
		want string
	}{
		{`client.search.get({ query = { b = 2, a = 1 } })`, "https://example.test/search?a=1&b=2"},
		{`client.search.get({ query = { tag = { "x", "y" } } })`, "https://example.test/search?tag=x&tag=y"},
		{`client.search.get({ query = { q = "a b/c", ["k y"] = "ü" } })`, "https://example.test/search?k%20y=%C3%BC&q=a%20b%2Fc"},
		{`client.search.get({ query = { safe = "A-z_0.9~" } })`, "https://example.test/search?safe=A-z_0.9~"},
		{`client.search.get({ query = { flag = false } })`, "https://example.test/search?flag=false"},
		{`client.search.get({ query = {} })`, "https://example.test/search"},
		{`client.search.get({ query = { tag = {} } })`, "https://example.test/search"},
		{`client.search.get({ query = { tag = { n = 3, "x", nil, "z" } } })`, "https://example.test/search?tag=x&tag=z"},
		{`client["q?x=1"].get({ query = { a = 1 } })`, "https://example.test/q?x=1&a=1"},
		{`client.search.get()`, "https://example.test/search"},
	}
	for _, tt := range tests {
		L := run(t, DefaultOptions(), newClient+tt.call)
		assert.Equal(t, tt.want, str(table(t, L, "captured"), "url"), tt.call)
	}
}

func TestRuntime_ClientNamedAfterGlobal(t *testing.T) {
	t.Parallel()

	for _, name := range runtimeGlobals {
		opts := DefaultOptions()
		opts.ClientName = name
		code := Render(sampleTree(), opts)
		assert.Contains(t, code, "local "+name+"_ = {}", name)

		L := loadClient(t, code)
		require.NoError(t, L.DoString(newClient+`
client:setBaseHeader("X-A", "1")
client.search.get({ query = { a = 1, tag = { "x" } } })`), name)
		captured := table(t, L, "captured")
		assert.Equal(t, "https://example.test/search?a=1&tag=x", str(captured, "url"), name)
		assert.Equal(t, "1", str(captured, "headers", "X-A"), name)
	}
}

func TestRuntime_HeaderMerge(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), `
client = Client:new({
  baseUrl = "https://example.test",
  baseHeaders = { X = "1" },
  request = function(opts)
    captured = opts
    return opts
  end
})
client.echo.post({ headers = { X = "2", Y = "3" } })
merged = captured.headers
client.echo.post()
defaults = captured.headers
`)
	merged := table(t, L, "merged")
	assert.Equal(t, "2", str(merged, "X"))
	assert.Equal(t, "3", str(merged, "Y"))
	assert.Equal(t, 2, countKeys(merged))
	assert.Equal(t, "1", str(table(t, L, "defaults"), "X"))
}

func TestRuntime_HeaderMutators(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), newClient+`
client:setBaseHeader("A", "1")
client:setBaseHeader("B", "2")
client:removeBaseHeader("B")
client.echo.post()
afterSet = captured.headers

client:setBaseHeaders({ C = "3" })
client.echo.post()
afterReplace = captured.headers

client:setBaseHeaders(nil)
client.echo.post()
afterReset = captured.headers

client.baseHeaders = nil
client:removeBaseHeader("missing")
client.echo.post()
none = captured.headers == nil
`)
	afterSet := table(t, L, "afterSet")
	assert.Equal(t, "1", str(afterSet, "A"))
	assert.Equal(t, "<nil>", str(afterSet, "B"))
	assert.Equal(t, "3", str(table(t, L, "afterReplace"), "C"))
	assert.Equal(t, 1, countKeys(table(t, L, "afterReplace")))
	assert.Equal(t, 0, countKeys(table(t, L, "afterReset")))
	assert.Equal(t, lua.LTrue, L.GetGlobal("none"))
}

func TestRuntime_TransportResultPassthrough(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), `
sentinel = { status = 201 }
client = Client:new({
  baseUrl = "https://example.test",
  request = function(opts)
    return sentinel
  end
})
same = client.echo.post({ body = "x" }) == sentinel
`)
	assert.Equal(t, lua.LTrue, L.GetGlobal("same"))
}

func TestRuntime_TransportErrorPropagates(t *testing.T) {
	t.Parallel()

	L := loadClient(t, Render(sampleTree(), DefaultOptions()))
	err := L.DoString(`
client = Client:new({
  baseUrl = "https://example.test",
  request = function(opts)
    error("boom")
  end
})
client.echo.post()
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRuntime_FeaturesOff(t *testing.T) {
	t.Parallel()

	L := run(t, Options{}, `
client = Client:new({
  baseUrl = "https://example.test",
  baseHeaders = { X = "1" },
  request = function(opts)
    captured = opts
    return opts
  end
})
client.a.b.get("7", { query = { a = 1 }, headers = { Y = "2" } })
first = captured
client.echo.post()
second = captured
`)
	first := table(t, L, "first")
	assert.Equal(t, "https://example.test/a/7/b", str(first, "url"))
	assert.Equal(t, "<nil>", str(first, "headers", "X"))
	assert.Equal(t, "2", str(first, "headers", "Y"))
	assert.Equal(t, "<nil>", str(table(t, L, "second"), "headers"))
}

func TestRuntime_Instances_AreIndependent(t *testing.T) {
	t.Parallel()

	L := run(t, DefaultOptions(), `
local function mk(base)
  return Client:new({
    baseUrl = base,
    request = function(opts) return opts.url end
  })
end
one = mk("https://one.test")
two = mk("https://two.test")
one:setBaseHeader("A", "1")
urlOne = one.echo.post()
urlTwo = two.echo.post()
twoHeaders = two.baseHeaders.A == nil
`)
	assert.Equal(t, "https://one.test/echo", L.GetGlobal("urlOne").String())
	assert.Equal(t, "https://two.test/echo", L.GetGlobal("urlTwo").String())
	assert.Equal(t, lua.LTrue, L.GetGlobal("twoHeaders"))
}

func countKeys(tbl *lua.LTable) int {
	n := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}
