package docs

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// TestIndex checks that the index lists every topic, and only existing ones.
func TestIndex(t *testing.T) {
	index, err := Topic(Index)
	require.NoError(t, err)

	var listed []string
	item := regexp.MustCompile(`^([a-z-]+):`)
	src := []byte(index)
	root := goldmark.DefaultParser().Parse(text.NewReader(src))
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if li, ok := n.(*ast.ListItem); ok {
			first := li.FirstChild()
			if first != nil && first.Lines().Len() > 0 {
				line := first.Lines().At(0)
				if m := item.FindSubmatch(line.Value(src)); m != nil {
					listed = append(listed, string(m[1]))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)

	topics, err := List()
	require.NoError(t, err)
	assert.ElementsMatch(t, topics, listed)
}

func TestTopics(t *testing.T) {
	all, err := Topics("*")
	require.NoError(t, err)
	topics, err := List()
	require.NoError(t, err)
	for _, name := range topics {
		content, err := Topic(name)
		require.NoError(t, err)
		assert.Contains(t, all, content)
	}

	_, err = Topics("positions", "nope")
	assert.ErrorContains(t, err, `topic "nope" not found`)
}
