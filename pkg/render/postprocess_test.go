package render_test

import (
	"strings"
	"testing"

	"github.com/aretw0/mjtree/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emailHTML = `<!doctype html>
<html>
  <head>
    <style type="text/css">
      body   { margin: 0;   padding: 0; }
    </style>
  </head>
  <body>
    <table role="presentation" width="100%" style="background:#ffffff">
      <tr>
        <td align="center" onclick="steal()">
          Hello    world
          <script>alert(1)</script>
        </td>
      </tr>
    </table>
  </body>
</html>`

func TestMinifier(t *testing.T) {
	out, err := render.Minifier()(emailHTML)
	require.NoError(t, err)

	assert.Less(t, len(out), len(emailHTML))
	assert.Contains(t, out, "Hello world")
	assert.Contains(t, out, "</table>", "end tags are kept")
	assert.Contains(t, out, "<html>", "document tags are kept")
	assert.NotContains(t, out, "\n    <table")
}

func TestSanitizer(t *testing.T) {
	out, err := render.Sanitizer()(emailHTML)
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, "onclick")

	assert.Contains(t, out, "<table")
	assert.Contains(t, out, `style="background:#ffffff"`)
	assert.Contains(t, out, `align="center"`)
	assert.Contains(t, out, "margin: 0;", "style blocks survive")
	assert.Contains(t, out, "Hello")
}

func TestChain(t *testing.T) {
	p := render.Chain(render.Sanitizer(), render.Minifier())
	out, err := p(emailHTML)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script")
	assert.False(t, strings.Contains(out, "\n\n"))

	identity, err := render.Chain()("as is")
	require.NoError(t, err)
	assert.Equal(t, "as is", identity)
}
