package page

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head><style>p{}</style></head><body>
<ul><li>Address:
  <span>100 MAIN ST</span><br>SPRINGFIELD,&nbsp;IL&nbsp;62704</li></ul>
<table><tr><td>A</td><td>B</td></tr></table>
<script>var x = 1;</script>
</body></html>`))
	require.NoError(t, err)

	li := doc.Find("li").Get(0)
	assert.Equal(t, "Address: 100 MAIN ST\nSPRINGFIELD, IL 62704", RenderText(li))

	tr := doc.Find("tr").Get(0)
	assert.Equal(t, "A B", RenderText(tr))

	assert.NotContains(t, RenderText(doc.Get(0)), "var x")
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"a\u00a0b", "a b"},
		{"\n\n line1 \n\n  line2\t\t x \n", "line1\nline2 x"},
		{"", ""},
		{"UNIT № 4", "UNIT № 4"},
		{"ＡＣＭＥ １", "ＡＣＭＥ １"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "input %q", tt.in)
	}
}

func TestLocatorMatches(t *testing.T) {
	loc := Locator{Contains: "@", MaxLen: 10}
	assert.True(t, loc.matches("a@b.co"))
	assert.False(t, loc.matches("no at sign"))
	assert.False(t, loc.matches("longer@example.com"))

	assert.True(t, Locator{}.matches("anything"))
	assert.Equal(t, "email", Locator{Name: "email", CSS: "a"}.String())
	assert.Equal(t, "a", Locator{CSS: "a"}.String())
}
