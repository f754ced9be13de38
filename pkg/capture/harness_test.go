package capture

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHarnessHTML_Defaults(t *testing.T) {
	html := HarnessHTML("http://127.0.0.1:9000/a.png", "", "")

	assert.Contains(t, html, `src="http://127.0.0.1:9000/a.png"`)
	assert.Contains(t, html, "background: #111")
	assert.Contains(t, html, "object-fit: contain")
}

func TestHarnessHTML_ConfiguredRender(t *testing.T) {
	html := HarnessHTML("/img/x.avif", "#fff", "cover")

	assert.Contains(t, html, "background: #fff")
	assert.Contains(t, html, "object-fit: cover")
}

func TestHarnessHTML_SingleImageElement(t *testing.T) {
	html := HarnessHTML("/a.png", "", "")
	assert.Equal(t, 1, strings.Count(html, "<img"), "harness must contain exactly one image element")
	assert.Contains(t, html, `id="probe"`)
}

func TestHarnessHTML_EscapesValues(t *testing.T) {
	html := HarnessHTML(`/a.png"><script>alert(1)</script>`, "", "")
	assert.NotContains(t, html, "<script>")
}
