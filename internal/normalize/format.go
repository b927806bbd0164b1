package normalize

import (
	"strings"

	"github.com/aymerick/douceur/parser"
	"github.com/ditashi/jsbeautifier-go/jsbeautifier"
	"github.com/sirupsen/logrus"
)

// FormatCSS pretty-prints a stylesheet. Unparseable input is returned as is.
// douceur always indents with two spaces and drops comments, so indent_size does not apply here.
func FormatCSS(src string) string {
	if strings.TrimSpace(src) == "" {
		return src
	}
	sheet, err := parser.Parse(src)
	if err != nil {
		logrus.Debugf("Stylesheet left unformatted: %v", err)
		return src
	}
	out := sheet.String()
	if strings.TrimSpace(out) == "" {
		return src
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// FormatJS pretty-prints a script with the given indent width. Unparseable input is returned as is.
func FormatJS(src string, indentSize int) (out string) {
	if strings.TrimSpace(src) == "" {
		return src
	}

	// The beautifier panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			logrus.Debugf("Script left unformatted: %v", r)
			out = src
		}
	}()

	opts := jsbeautifier.DefaultOptions()
	opts["indent_size"] = indentSize
	formatted, err := jsbeautifier.Beautify(&src, opts)
	if err != nil {
		logrus.Debugf("Script left unformatted: %v", err)
		return src
	}
	return strings.TrimRight(formatted, "\n") + "\n"
}
