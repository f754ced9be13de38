package capture

import (
	"fmt"
	"html"
)

// harnessTemplate is the minimal document rendered for every trial:
// exactly one image element, centered on a configurable background with a
// configurable object-fit. Nothing else may paint inside the capture
// region or it would pollute the similarity signal.
const harnessTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>paintbench harness</title>
    <style>
        html, body {
            margin: 0;
            padding: 0;
            width: 100%%;
            height: 100%%;
            overflow: hidden;
            background: %s;
        }
        body {
            display: flex;
            align-items: center;
            justify-content: center;
        }
        #probe {
            max-width: 100%%;
            max-height: 100%%;
            object-fit: %s;
        }
    </style>
</head>
<body>
    <img id="probe" src="%s">
</body>
</html>`

// HarnessHTML builds the harness document for one test case URL.
// bg and fit default to a neutral dark background and "contain" when
// empty; values are escaped so config content cannot break the markup.
func HarnessHTML(src, bg, fit string) string {
	if bg == "" {
		bg = "#111"
	}
	if fit == "" {
		fit = "contain"
	}
	return fmt.Sprintf(harnessTemplate, html.EscapeString(bg), html.EscapeString(fit), html.EscapeString(src))
}
