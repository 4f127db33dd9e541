package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tr, err := New("en")
	require.NoError(t, err)

	assert.Equal(t, "is required", tr.T("", "validation.required", nil))
	assert.Equal(t, "不能为空", tr.T("zh-CN,zh;q=0.9,en;q=0.8", "validation.required", nil))
	assert.Equal(t, "must be at most 64", tr.T("fr", "validation.max", map[string]any{"Param": "64"}))
	assert.Equal(t, "no.such.key", tr.T("en", "no.such.key", nil))
	assert.ElementsMatch(t, []string{"en", "zh"}, tr.Languages())
}

func TestDefaultShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
