package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_NullImage(t *testing.T) {
	p := &Post{ID: 7, Username: DefaultUsername, Content: "hi", CreatedAt: Now(), UpdatedAt: Now()}

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m, 6)
	assert.Contains(t, m, "image")
	assert.Nil(t, m["image"])
	assert.Equal(t, "anon", m["username"])
}

func TestPostClone_DoesNotShareImage(t *testing.T) {
	img := "a.png"
	p := &Post{ID: 1, Image: &img}

	c := p.Clone()
	*c.Image = "b.png"

	assert.Equal(t, "a.png", *p.Image)
	assert.Nil(t, (*Post)(nil).Clone())
}

func TestNewCreatedPost_EchoesOnlySuppliedFields(t *testing.T) {
	now := Now()
	p := &Post{ID: 3, Username: DefaultUsername, Content: "!tchau mundo", CreatedAt: now, UpdatedAt: now}

	b, err := json.Marshal(NewCreatedPost(p, &CreatePostRequest{Content: "!tchau mundo"}))
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.ElementsMatch(t, []string{"id", "content", "created_at", "updated_at"}, keys(m))

	img := "cat.png"
	p.Image = &img
	b, err = json.Marshal(NewCreatedPost(p, &CreatePostRequest{Content: "x", Image: &img}))
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "cat.png", m["image"])
	assert.NotContains(t, m, "username")
}

func TestNullableString_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSet bool
		wantVal *string
	}{
		{name: "absent", body: `{"content":"x"}`},
		{name: "null", body: `{"content":"x","image":null}`, wantSet: true},
		{name: "value", body: `{"content":"x","image":"a.png"}`, wantSet: true, wantVal: strPtr("a.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdatePostRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantSet, req.Image.Set)
			assert.Equal(t, tt.wantVal, req.Image.Value)
		})
	}
}

func TestNullableString_RejectsNonString(t *testing.T) {
	var req UpdatePostRequest
	err := json.Unmarshal([]byte(`{"content":"x","image":42}`), &req)
	assert.Error(t, err)
}

func TestNow_MicrosecondUTC(t *testing.T) {
	n := Now()
	assert.Equal(t, time.UTC, n.Location())
	assert.Zero(t, n.Nanosecond()%1000)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestNullableString_UnmarshalParam(t *testing.T) {
	var n NullableString
	require.NoError(t, n.UnmarshalParam("a.png"))
	assert.True(t, n.Set)
	require.NotNil(t, n.Value)
	assert.Equal(t, "a.png", *n.Value)

	n = NullableString{}
	require.NoError(t, n.UnmarshalParam(""))
	assert.True(t, n.Set)
	assert.Equal(t, "", *n.Value)
}
