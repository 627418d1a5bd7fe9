package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_MarshalKeepsEveryField(t *testing.T) {
	errs := NewErrors("title", "start", "end")
	errs.Add("start", MsgNotBlank)

	b, err := json.Marshal(errs)
	require.NoError(t, err)
	assert.Equal(t, `{"children":{"title":[],"start":["This value should not be blank."],"end":[]}}`, string(b))
	assert.True(t, errs.HasErrors())
	assert.Equal(t, []string{"start"}, errs.Failed())
}

func TestErrors_NestedChildAndFormErrors(t *testing.T) {
	child := NewErrors("interval", "timeZone")
	root := NewErrors("title", "recurrence")
	root.SetChild("recurrence", child)
	root.AddForm(MsgExtraFields)

	b, err := json.Marshal(root)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"errors": ["This form should not contain extra fields."],
		"children": {
			"title": [],
			"recurrence": {"children": {"interval": [], "timeZone": []}}
		}
	}`, string(b))

	// a clean child does not fail the parent
	root = NewErrors("recurrence")
	root.SetChild("recurrence", child)
	assert.False(t, root.HasErrors())

	child.Add("interval", MsgMin(1))
	assert.True(t, root.HasErrors())
	assert.Equal(t, []string{"recurrence"}, root.Failed())
}

func TestEnvelope(t *testing.T) {
	errs := NewErrors("title")
	errs.Add("title", MsgNotBlank)

	b, err := json.Marshal(NewEnvelope(errs))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":400,"message":"Validation Failed","errors":{"children":{"title":["This value should not be blank."]}}}`, string(b))
}

func TestValueDecoders(t *testing.T) {
	t.Run("int", func(t *testing.T) {
		for _, v := range []any{2, int64(2), float64(2), json.Number("2"), "2"} {
			n, err := Int(v).Get()
			require.NoError(t, err, "%T", v)
			assert.Equal(t, 2, n)
		}
		for _, v := range []any{2.5, 1e300, -1e300, math.Inf(1), math.NaN(), json.Number("2.5"), "two", true, []any{}} {
			assert.True(t, Int(v).IsError(), "%v", v)
		}
	})

	t.Run("int range", func(t *testing.T) {
		assert.True(t, Int64("9223372036854775808").IsError())
		assert.Equal(t, int64(9007199254740993), Int64(json.Number("9007199254740993")).MustGet())

		wide := int64(1) << 40
		if strconv.IntSize == 32 {
			assert.True(t, Int(wide).IsError())
			assert.True(t, Int(json.Number("4294967296")).IsError())
		} else {
			assert.Equal(t, int(wide), Int(wide).MustGet())
		}
	})

	t.Run("bool", func(t *testing.T) {
		assert.True(t, Bool(true).MustGet())
		assert.True(t, Bool("1").MustGet())
		assert.False(t, Bool(json.Number("0")).MustGet())
		assert.True(t, Bool("maybe").IsError())
	})

	t.Run("time", func(t *testing.T) {
		ts, err := Time("2016-10-14T22:00:00+00:00").Get()
		require.NoError(t, err)
		assert.True(t, ts.Equal(time.Date(2016, 10, 14, 22, 0, 0, 0, time.UTC)))
		assert.True(t, Time("2016-10-14").IsError())
		assert.True(t, Time(42).IsError())
	})

	t.Run("strings", func(t *testing.T) {
		assert.Equal(t, []string{"monday"}, Strings([]any{"monday"}).MustGet())
		assert.True(t, Strings([]any{1}).IsError())
		assert.True(t, Strings("monday").IsError())
	})

	t.Run("lookup treats null as absent", func(t *testing.T) {
		_, ok := Lookup(map[string]any{"a": nil}, "a")
		assert.False(t, ok)
	})
}
