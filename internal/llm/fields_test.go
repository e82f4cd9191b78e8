package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsCoercion(t *testing.T) {
	res := Result{Data: []byte(`{
		"title": " HW3 ",
		"priority": 1,
		"urgent": true,
		"class_name": null,
		"due_date": "null",
		"confidence": "0.9",
		"score": 0.25,
		"bad_number": "high",
		"tags": "trees, pruning,",
		"terms": ["knn", 3, null, ""],
		"nested": {"a": 1}
	}`)}

	f, err := res.Fields()
	require.NoError(t, err)

	assert.Equal(t, "HW3", f.String("title"))
	assert.Equal(t, "1", f.String("priority"))
	assert.Equal(t, "true", f.String("urgent"))
	assert.Equal(t, "", f.String("nested"))
	assert.Equal(t, "", f.String("missing"))

	assert.Nil(t, f.OptString("class_name"))
	assert.Nil(t, f.OptString("due_date"))
	require.NotNil(t, f.OptString("title"))
	assert.Equal(t, "HW3", *f.OptString("title"))

	assert.Equal(t, 0.9, f.Float("confidence", 0.5))
	assert.Equal(t, 0.25, f.Float("score", 0.5))
	assert.Equal(t, 0.5, f.Float("bad_number", 0.5))
	assert.Equal(t, 0.5, f.Float("missing", 0.5))

	assert.Equal(t, []string{"trees", "pruning"}, f.Strings("tags"))
	assert.Equal(t, []string{"knn", "3"}, f.Strings("terms"))
	assert.Equal(t, []string{}, f.Strings("nested"))
}

func TestFieldsRejectsNonObject(t *testing.T) {
	_, err := Result{Data: []byte(`[1,2]`)}.Fields()
	assert.Error(t, err)
}
