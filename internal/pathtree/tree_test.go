package pathtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(op any) []MethodSpec { return []MethodSpec{{Method: "get", Operation: op}} }

func TestBuild_SharedPrefixIsOneNode(t *testing.T) {
	t.Parallel()

	orders := [][]PathSpec{
		{{Path: "/users/{id}/flags", Methods: get(1)}, {Path: "/users", Methods: get(2)}, {Path: "/users/me", Methods: get(3)}},
		{{Path: "/users/me", Methods: get(3)}, {Path: "/users", Methods: get(2)}, {Path: "/users/{id}/flags", Methods: get(1)}},
	}
	for _, paths := range orders {
		root := Build(paths)
		require.Equal(t, []string{"users"}, root.Keys())

		users := root.Child("users")
		require.NotNil(t, users)
		assert.Same(t, users, root.Child("users"))
		assert.ElementsMatch(t, []string{"flags", "me"}, users.Keys())
		assert.True(t, users.HasMethods())
		assert.Equal(t, 2, users.Route("get").Operation)
		assert.Equal(t, []string{"id"}, users.Child("flags").Route("get").PathParams)
	}
}

func TestBuild_InsertionOrder(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{
		{Path: "/zeta", Methods: []MethodSpec{{Method: "post"}, {Method: "get"}}},
		{Path: "/alpha", Methods: get(nil)},
		{Path: "/mid", Methods: get(nil)},
	})
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, root.Keys())
	assert.Equal(t, []string{"post", "get"}, root.Child("zeta").Methods())
}

func TestBuild_ParamsAreNotKeys(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{{Path: "/a/{id}/b/{slug}", Methods: get("op")}})
	a := root.Child("a")
	require.NotNil(t, a)
	assert.Equal(t, []string{"b"}, a.Keys())
	assert.Nil(t, a.Child("{id}"))

	r := a.Child("b").Route("get")
	require.NotNil(t, r)
	assert.Equal(t, "/a/{id}/b/{slug}", r.FullPath)
	assert.Equal(t, []string{"id", "slug"}, r.PathParams)
	assert.Equal(t, "op", r.Operation)
}

func TestBuild_DuplicateParamNamesKept(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{{Path: "/orgs/{id}/members/{id}", Methods: get(nil)}})
	r := root.Child("orgs").Child("members").Route("get")
	require.NotNil(t, r)
	assert.Equal(t, []string{"id", "id"}, r.PathParams)
}

func TestBuild_EmptySegmentsDropped(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{{Path: "//a///b/", Methods: get(nil)}})
	assert.Equal(t, []string{"a"}, root.Keys())
	b := root.Child("a").Child("b")
	require.NotNil(t, b)
	assert.Equal(t, "//a///b/", b.Route("get").FullPath)
}

func TestBuild_PartialBracesAreLiteral(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{{Path: "/files/v{version}/{}", Methods: get(nil)}})
	files := root.Child("files")
	require.NotNil(t, files)
	assert.Equal(t, []string{"v{version}"}, files.Keys())
	v := files.Child("v{version}")
	require.NotNil(t, v)
	assert.Equal(t, []string{"{}"}, v.Keys())
	assert.Empty(t, v.Child("{}").Route("get").PathParams)
}

func TestBuild_RootRoute(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{{Path: "/", Methods: get(nil)}, {Path: "/{id}", Methods: []MethodSpec{{Method: "delete"}}}})
	assert.Empty(t, root.Keys())
	assert.Equal(t, []string{"get", "delete"}, root.Methods())
	assert.Equal(t, []string{"id"}, root.Route("delete").PathParams)
}

func TestBuild_ReinsertOverwrites(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{
		{Path: "/x", Methods: []MethodSpec{{Method: "get", Operation: 1}, {Method: "put", Operation: 1}}},
		{Path: "/x", Methods: []MethodSpec{{Method: "get", Operation: 2}}},
	})
	x := root.Child("x")
	assert.Equal(t, []string{"get", "put"}, x.Methods())
	assert.Equal(t, 2, x.Route("get").Operation)
	assert.Equal(t, 1, x.Route("put").Operation)
}

func TestBuild_ParamsAttachToTerminalNode(t *testing.T) {
	t.Parallel()

	// "/a/{id}" ends on node "a", sharing it with "/a".
	root := Build([]PathSpec{
		{Path: "/a", Methods: get(nil)},
		{Path: "/a/{id}", Methods: []MethodSpec{{Method: "put"}}},
	})
	a := root.Child("a")
	assert.Empty(t, a.Route("get").PathParams)
	assert.Equal(t, []string{"id"}, a.Route("put").PathParams)
}

func TestWalk_DepthFirst(t *testing.T) {
	t.Parallel()

	root := Build([]PathSpec{
		{Path: "/a/b", Methods: get(nil)},
		{Path: "/c", Methods: get(nil)},
		{Path: "/a/d", Methods: get(nil)},
	})
	var visited []string
	root.Walk(func(segments []string, _ *Node) {
		path := ""
		for _, s := range segments {
			path += "/" + s
		}
		visited = append(visited, path)
	})
	assert.Equal(t, []string{"", "/a", "/a/b", "/a/d", "/c"}, visited)
}

func TestParamName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		name string
		ok   bool
	}{
		{"{id}", "id", true},
		{"{a}{b}", "a}{b", true},
		{"{}", "", false},
		{"x{id}", "", false},
		{"{id}x", "", false},
		{"id", "", false},
	}
	for _, tc := range cases {
		name, ok := ParamName(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
	}
}
