package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const fragment = `<div class="result result--web" id="r1">
  <a class="result__a" href="https://youth.seoul.go.kr">청년
     몽땅</a>
  <p class="result__snippet">서울 <b>청년</b> 정책</p>
</div>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestHasClass(t *testing.T) {
	doc := parse(t, fragment)
	div := FindFirst(doc, IsElement(atom.Div))
	require.NotNil(t, div)

	assert.True(t, HasClass(div, "result"))
	assert.True(t, HasClass(div, "result--web"))
	assert.False(t, HasClass(div, "result__a"))
	assert.False(t, HasClass(&html.Node{Type: html.TextNode, Data: "result"}, "result"))
}

func TestAttr(t *testing.T) {
	doc := parse(t, fragment)
	a := FindFirst(doc, IsElement(atom.A))
	require.NotNil(t, a)

	assert.Equal(t, "https://youth.seoul.go.kr", Attr(a, "href"))
	assert.Equal(t, "", Attr(a, "title"))
}

func TestText(t *testing.T) {
	doc := parse(t, fragment)
	p := FindFirst(doc, IsElement(atom.P))
	require.NotNil(t, p)
	assert.Equal(t, "서울 청년 정책", Text(p))

	a := FindFirst(doc, IsElement(atom.A))
	require.NotNil(t, a)
	assert.Equal(t, "청년\n     몽땅", Text(a))
	assert.Equal(t, "청년 몽땅", CollapsedText(a))
}

func TestFindAll(t *testing.T) {
	doc := parse(t, `<ul><li>a</li><li>b<ul><li>c</li></ul></li></ul>`)

	items := FindAll(doc, IsElement(atom.Li))
	require.Len(t, items, 3)
	assert.Equal(t, "a", Text(items[0]))
	assert.Equal(t, "c", Text(items[2]))
	assert.Empty(t, FindAll(doc, IsElement(atom.Table)))
	assert.Nil(t, FindFirst(doc, IsElement(atom.Table)))
}
